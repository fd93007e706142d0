package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := NewUploadLimiter(2, 50*time.Millisecond)

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 2, l.ActiveCount())

	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTooManyUploads)

	l.Release()
	assert.Equal(t, 1, l.ActiveCount())
	require.NoError(t, l.Acquire(context.Background()))

	l.Release()
	l.Release()
	assert.Equal(t, 0, l.ActiveCount())
}

func TestLimiter_WaitsForSlot(t *testing.T) {
	l := NewUploadLimiter(1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	go func() {
		time.Sleep(50 * time.Millisecond)
		l.Release()
	}()

	// Blocks until the slot frees up, well before the wait timeout.
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := NewUploadLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	l.Release()
}

func TestLimiter_WaitForDrain(t *testing.T) {
	l := NewUploadLimiter(2, 50*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))

	go func() {
		time.Sleep(150 * time.Millisecond)
		l.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.WaitForDrain(ctx))
	assert.Equal(t, 0, l.ActiveCount())
}

func TestLimiter_WaitForDrainTimeout(t *testing.T) {
	l := NewUploadLimiter(1, 50*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestLimiter_Status(t *testing.T) {
	l := NewUploadLimiter(3, 50*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))

	status := l.Status()
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, 2, status.Available)
	assert.Equal(t, 3, status.MaxConcurrent)
	l.Release()
}

func TestLimiter_DefaultsApplied(t *testing.T) {
	l := NewUploadLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentUploads, l.Status().MaxConcurrent)
}
