package camera

import "sync/atomic"

// Stats holds a stream's monotonic counters. They are incremented only by
// the capture goroutine and may be read from any goroutine; readers see
// eventually-consistent values.
type Stats struct {
	completed   atomic.Uint64
	failures    atomic.Uint64
	underruns   atomic.Uint64
	transferred atomic.Uint64
}

// AddCompleted records one completed frame of n payload bytes.
func (s *Stats) AddCompleted(n uint64) {
	s.completed.Add(1)
	s.transferred.Add(n)
}

// AddFailure records one failed capture interaction.
func (s *Stats) AddFailure() { s.failures.Add(1) }

// AddUnderrun records one wait-phase timeout with no frame available.
func (s *Stats) AddUnderrun() { s.underruns.Add(1) }

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Completed:        s.completed.Load(),
		Failures:         s.failures.Load(),
		Underruns:        s.underruns.Load(),
		TransferredBytes: s.transferred.Load(),
	}
}

// StatsSnapshot is a consistent-enough view of a stream's counters.
type StatsSnapshot struct {
	Completed        uint64
	Failures         uint64
	Underruns        uint64
	TransferredBytes uint64
}
