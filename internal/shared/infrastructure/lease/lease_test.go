package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		l := NewMemoryLocker()
		release, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		defer release(ctx)

		_, err = l.Acquire(ctx, "sync:a", time.Minute)
		assert.ErrorIs(t, err, ErrHeld)
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewMemoryLocker()
		releaseA, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		defer releaseA(ctx)

		releaseB, err := l.Acquire(ctx, "sync:b", time.Minute)
		require.NoError(t, err)
		releaseB(ctx)
	})

	t.Run("release frees the lease", func(t *testing.T) {
		l := NewMemoryLocker()
		release, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		release(ctx)

		again, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		again(ctx)
	})

	t.Run("expired lease can be re-acquired", func(t *testing.T) {
		l := NewMemoryLocker()
		_, err := l.Acquire(ctx, "sync:a", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		release, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		release(ctx)
	})

	t.Run("stale release does not drop a successor's lease", func(t *testing.T) {
		l := NewMemoryLocker()
		staleRelease, err := l.Acquire(ctx, "sync:a", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		release, err := l.Acquire(ctx, "sync:a", time.Minute)
		require.NoError(t, err)
		defer release(ctx)

		staleRelease(ctx)

		_, err = l.Acquire(ctx, "sync:a", time.Minute)
		assert.ErrorIs(t, err, ErrHeld, "the successor must still hold the lease")
	})
}
