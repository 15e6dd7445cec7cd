package txengine

import (
	"sync"
	"time"
)

// Stats aggregates submission outcomes of one run.
// pending is raised once per submission and lowered exactly once by its terminal outcome.
type Stats struct {
	mu      sync.Mutex
	pending int
	success int
	failed  int
	times   []time.Duration
}

// Snapshot is a copy of Stats at one moment.
type Snapshot struct {
	Pending int
	Success int
	Failed  int
	Times   []time.Duration
}

func (s *Stats) Begin() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Succeed closes a begun submission as confirmed.
func (s *Stats) Succeed(elapsed time.Duration) {
	s.mu.Lock()
	s.pending--
	s.success++
	s.times = append(s.times, elapsed)
	s.mu.Unlock()
}

// Fail closes a begun submission as failed.
func (s *Stats) Fail() {
	s.mu.Lock()
	s.pending--
	s.failed++
	s.mu.Unlock()
}

// Reject counts a failure detected before anything was submitted.
func (s *Stats) Reject() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pending: s.pending,
		Success: s.success,
		Failed:  s.failed,
		Times:   append([]time.Duration(nil), s.times...),
	}
}

// Average returns the mean confirmation time, zero when nothing succeeded.
func (sn Snapshot) Average() time.Duration {
	if len(sn.Times) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range sn.Times {
		sum += d
	}
	return sum / time.Duration(len(sn.Times))
}
