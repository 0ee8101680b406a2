package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockoutPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultLockoutPolicy()

	t.Run("locks only past the threshold", func(t *testing.T) {
		require.False(t, p.ShouldLock(1))
		require.False(t, p.ShouldLock(5))
		require.True(t, p.ShouldLock(6))
	})

	t.Run("remaining counts down to the lock", func(t *testing.T) {
		require.Equal(t, 5, p.Remaining(1))
		require.Equal(t, 1, p.Remaining(5))
		require.Equal(t, 0, p.Remaining(6))
		require.Equal(t, 0, p.Remaining(99))
	})

	t.Run("lock duration is applied from now", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.Equal(t, now.Add(15*time.Minute), p.LockUntil(now))
	})

	t.Run("lapsed lock detection", func(t *testing.T) {
		now := time.Now()
		past := now.Add(-time.Minute)
		future := now.Add(time.Minute)

		require.True(t, p.Lapsed(&past, now))
		require.False(t, p.Lapsed(&future, now))
		require.False(t, p.Lapsed(nil, now))
	})
}
