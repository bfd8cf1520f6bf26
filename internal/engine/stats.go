package engine

import (
	"log"
	"time"
)

// Stats counts presented frames and logs the rate once per interval.
type Stats struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
	frames   int
	rate     float64
}

func NewStats(interval time.Duration) *Stats {
	s := &Stats{interval: interval, now: time.Now}
	s.last = s.now()
	return s
}

func (s *Stats) Frame() {
	s.frames++
	now := s.now()
	elapsed := now.Sub(s.last)
	if s.interval <= 0 || elapsed < s.interval {
		return
	}
	s.rate = float64(s.frames) / elapsed.Seconds()
	s.frames = 0
	s.last = now
	log.Printf("FPS: %.1f", s.rate)
}

// Rate is the frame rate measured over the last full interval.
func (s *Stats) Rate() float64 {
	return s.rate
}
