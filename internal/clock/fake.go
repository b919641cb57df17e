package clock

import (
	"sync"
	"time"
)

// FakeClock hands out timer signals only when told to, keeping time-driven
// code deterministic under test.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []chan time.Time
	pending int
}

// NewFakeClock returns a fake clock anchored at the Unix epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Now returns the fake clock's current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After registers a waiter that is released by the next Fire call. A Fire
// that happened before any waiter existed is banked and satisfies the next
// After immediately.
func (f *FakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.mu.Lock()
	if f.pending > 0 {
		f.pending--
		now := f.now
		f.mu.Unlock()
		ch <- now
		return ch
	}
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()
	return ch
}

// Fire delivers one timer event to every current waiter, or banks the event
// when nobody is waiting.
func (f *FakeClock) Fire() {
	f.mu.Lock()
	if len(f.waiters) == 0 {
		f.pending++
		f.mu.Unlock()
		return
	}
	waiters := append([]chan time.Time(nil), f.waiters...)
	now := f.now
	f.waiters = nil
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- now
	}
}

// Advance moves the fake clock's current time forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
