package service

import "time"

// Lockout defaults. A sixth consecutive failure trips the lock.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
)

// LockoutPolicy is the progressive lockout rule applied to login failures.
// Pure arithmetic, no storage: callers feed it the persisted counter.
//
// A user gets warned while the counter is at or below MaxAttempts and is
// locked once it goes past. Failed OTP and recovery-code attempts feed the
// same counter as password failures, so the second login phase cannot be
// brute forced either.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: DefaultMaxFailedAttempts,
		Duration:    DefaultLockoutDuration,
	}
}

// ShouldLock reports whether the given failure count trips the lock.
func (p LockoutPolicy) ShouldLock(attempts int) bool {
	return attempts > p.MaxAttempts
}

// Remaining returns how many more failures the user may make before the
// lock trips, given the current counter. Never negative.
func (p LockoutPolicy) Remaining(attempts int) int {
	r := p.MaxAttempts - attempts + 1
	if r < 0 {
		return 0
	}
	return r
}

// LockUntil returns the lock expiry for a lock tripped at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// Lapsed reports whether a previously set lock has expired, meaning the
// counter should be reset before judging the current attempt.
func (p LockoutPolicy) Lapsed(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && !now.Before(*lockedUntil)
}
