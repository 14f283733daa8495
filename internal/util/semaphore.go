package util

import (
	"context"
)

// Semaphore bounds the number of concurrent holders.  The zero capacity means
// unbounded.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a Semaphore admitting up to count holders at a time.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{
		slots: make(chan struct{}, count),
	}
}

// Acquire blocks until a slot is free or ctx is done.  Returns false if ctx was
// done first, in which case Release must not be called.
func (s *Semaphore) Acquire(ctx context.Context) bool {
	if s.slots == nil {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case s.slots <- struct{}{}:
		return true
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	if s.slots == nil {
		return
	}
	<-s.slots
}
