package nabu

import (
	"sync"
	"time"
)

// ServiceStats records per-segment service times across a run, for the
// daemon's shutdown histogram.
type ServiceStats struct {
	mu sync.Mutex

	times    []float64
	segments int64
	bytes    int64
	start    time.Time
}

// NewServiceStats creates an empty recorder.
func NewServiceStats() *ServiceStats {
	return &ServiceStats{start: time.Now()}
}

// Record adds one served segment: how long the full request/response
// exchange took and how many frame bytes went out.
func (s *ServiceStats) Record(took time.Duration, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.times = append(s.times, float64(took.Nanoseconds()))
	s.segments++
	s.bytes += int64(size)
}

// Times returns a copy of the recorded service times in nanoseconds.
func (s *ServiceStats) Times() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.times...)
}

// Summary returns totals for the run.
func (s *ServiceStats) Summary() (segments, bytes int64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments, s.bytes, time.Since(s.start)
}
