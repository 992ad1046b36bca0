package game

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending deferred call.
type Timer interface {
	// Stop prevents the call from running. It reports false if the call
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler runs f once after d without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler is backed by time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// FakeScheduler is deterministic and test-friendly. Nothing runs until
// Advance moves its virtual clock past a deadline.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	s       *FakeScheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func NewFakeScheduler() *FakeScheduler { return &FakeScheduler{} }

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.pending = append(s.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.s.remove(t)
	return true
}

// Advance moves the virtual clock forward by d, running every call that
// falls due in deadline order (scheduling order on ties). Calls scheduled
// by a running callback are honoured if they fall inside the window.
// Callbacks run on the caller's goroutine with no scheduler lock held.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		s.remove(t)
		t.fired = true
		s.now = t.at
		s.mu.Unlock()
		t.f()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// Pending reports how many calls are scheduled and not yet run or stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Elapsed returns the virtual time since construction.
func (s *FakeScheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *FakeScheduler) nextDue(target time.Duration) *fakeTimer {
	if len(s.pending) == 0 {
		return nil
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].at != s.pending[j].at {
			return s.pending[i].at < s.pending[j].at
		}
		return s.pending[i].seq < s.pending[j].seq
	})
	if s.pending[0].at > target {
		return nil
	}
	return s.pending[0]
}

func (s *FakeScheduler) remove(t *fakeTimer) {
	for i, p := range s.pending {
		if p == t {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
