package wsync

import (
	"sync/atomic"
	"time"
)

type Semaphore struct {
	slots        chan struct{}
	waiterBudget int32
}

func NewSemaphore(max uint, maxWaiters uint) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, max), waiterBudget: int32(maxWaiters + max)}
}

func (s *Semaphore) Lock() {
	atomic.AddInt32(&s.waiterBudget, -1)
	s.slots <- struct{}{}
}

func (s *Semaphore) Unlock() {
	atomic.AddInt32(&s.waiterBudget, 1)
	<-s.slots
}

func (s *Semaphore) TryLock(timeout time.Duration) bool {
	budgetLeft := atomic.AddInt32(&s.waiterBudget, -1)
	if budgetLeft < 0 {
		atomic.AddInt32(&s.waiterBudget, 1)
		return false
	}

	select {
	case s.slots <- struct{}{}:
		return true
	case <-time.After(timeout):
		atomic.AddInt32(&s.waiterBudget, 1)
	}
	return false
}
