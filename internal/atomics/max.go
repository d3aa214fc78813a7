// Helper functions that deal with atomic variables and their values
package atomics

import "sync/atomic"

// Raises value to candidate if candidate is larger. Returns the value held afterwards.
func StoreMax(value *atomic.Uint64, candidate uint64) (current uint64) {
	for {
		current = value.Load()
		if candidate <= current {
			return
		}
		if value.CompareAndSwap(current, candidate) {
			current = candidate
			return
		}
	}
}
