package auth

import (
	"sync"
	"time"
)

// Timer is the cancellable handle of a scheduled task.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RefreshDelay is (expiresAt - now) - margin, floored at zero. Zero means the
// token is inside its safety margin (or already expired) and must be
// refreshed right away.
func RefreshDelay(expiresAt, now time.Time, margin time.Duration) time.Duration {
	d := expiresAt.Sub(now) - margin
	if d < 0 {
		return 0
	}
	return d
}

// RefreshSchedule owns at most one pending refresh timer. Scheduling replaces
// the previous timer under the same lock, so two live timers never coexist.
type RefreshSchedule struct {
	mu        sync.Mutex
	afterFunc AfterFunc
	handle    Timer
	fireAt    time.Time
	seq       uint64
}

func NewRefreshSchedule(afterFunc AfterFunc) *RefreshSchedule {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &RefreshSchedule{afterFunc: afterFunc}
}

// Schedule cancels any pending timer and runs fn after delay.
func (s *RefreshSchedule) Schedule(fireAt time.Time, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.seq++
	seq := s.seq
	s.fireAt = fireAt
	s.handle = s.afterFunc(delay, func() {
		s.mu.Lock()
		if s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.handle = nil
		s.fireAt = time.Time{}
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer, if any.
func (s *RefreshSchedule) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.seq++
}

// Pending reports whether a timer is armed and when it fires.
func (s *RefreshSchedule) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fireAt, s.handle != nil
}

func (s *RefreshSchedule) stopLocked() {
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	s.fireAt = time.Time{}
}
