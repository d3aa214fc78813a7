package recorder

import (
	"statefeed/internal/delivery"
	"statefeed/internal/externalio/beats"
	"statefeed/internal/externalio/file"
	"sync"
	"sync/atomic"
	"time"
)

type Instance struct {
	Namespace []string
	Inbox     *delivery.Queue
	FileMod   *file.OutModule
	BeatsMod  *beats.OutModule
	tracker   ChangeTracker
	pacer     *Pacer
	mutex     sync.Mutex
	totals    Totals
	Metrics   MetricStorage
}

// Aggregate of everything recorded so far
type Totals struct {
	States   uint64
	Frames   uint64
	Duration time.Duration // Sum of state intervals
}

// Detects whether a state carries a receive time not seen before
type ChangeTracker struct {
	last time.Time
}

// Converts state intervals to whole output frames at a fixed rate
type Pacer struct {
	fps        float64
	fractional float64
}

type MetricStorage struct {
	Recorded          atomic.Uint64
	SkippedDuplicates atomic.Uint64
	Frames            atomic.Uint64
	FileWrites        atomic.Uint64
	BeatsWrites       atomic.Uint64
	WriteErrors       atomic.Uint64
}
