package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	err := pool.Run(context.Background(), func() error {
		return nil
	})
	assert.NoError(t, err)

	expected := errors.New("boom")
	err = pool.Run(context.Background(), func() error {
		return expected
	})
	assert.Equal(t, expected, err)
}

func TestPool_RunTimeout(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Simulates a wedged OS call: the wait gives up but the worker is
	// still busy until we release it.
	err := pool.Run(ctx, func() error {
		<-release
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestPool_CloseIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Close()
	assert.NotPanics(t, func() {
		pool.Close()
	})
}
