package recorder

import (
	"time"
)

// Reports true exactly once per distinct, non-zero receive time
func (tracker *ChangeTracker) HasNew(receivedAt time.Time) (fresh bool) {
	if receivedAt.IsZero() {
		return
	}
	if receivedAt.Equal(tracker.last) {
		return
	}
	tracker.last = receivedAt
	fresh = true
	return
}

func NewPacer(fps int) (new *Pacer) {
	new = &Pacer{fps: float64(fps)}
	return
}

// Number of output frames a state with interval dt accounts for.
// Fractions carry over to later states; every state yields at least one frame.
func (pacer *Pacer) Frames(dt time.Duration) (frames int) {
	if dt <= 0 {
		frames = 1
		return
	}

	pacer.fractional += dt.Seconds() * pacer.fps
	frames = int(pacer.fractional)
	pacer.fractional -= float64(frames)
	if frames < 1 {
		frames = 1
	}
	return
}
