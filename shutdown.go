package main

import (
	"sync/atomic"
	"time"
)

// shutdown hands a signal from closer's goroutine to the main loop. The loop
// polls requested, unwinds its defers on the locked thread and then calls
// finish.
type shutdown struct {
	stop  atomic.Bool
	done  chan struct{}
	grace time.Duration
}

func newShutdown(grace time.Duration) *shutdown {
	return &shutdown{done: make(chan struct{}), grace: grace}
}

// request asks the loop to stop and blocks until it has finished or the
// grace period runs out.
func (s *shutdown) request() {
	s.stop.Store(true)
	select {
	case <-s.done:
	case <-time.After(s.grace):
	}
}

func (s *shutdown) requested() bool {
	return s.stop.Load()
}

func (s *shutdown) finish() {
	close(s.done)
}
