package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"libraryhub/internal/lifecycle"
)

func Test_Sweeper_RunsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	var sawAll atomic.Bool
	s := NewSweeper(func(_ context.Context, scope lifecycle.Scope) (int, int, error) {
		calls.Add(1)
		sawAll.Store(scope == lifecycle.All())
		return 1, 0, nil
	}, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
	assert.True(t, sawAll.Load())
}

func Test_Sweeper_DisabledWithoutInterval(t *testing.T) {
	called := false
	s := NewSweeper(func(context.Context, lifecycle.Scope) (int, int, error) {
		called = true
		return 0, 0, nil
	}, 0, nil)

	s.Run(context.Background())
	assert.False(t, called)
}

func Test_Sweeper_ErrorDoesNotStop(t *testing.T) {
	var calls atomic.Int32
	s := NewSweeper(func(context.Context, lifecycle.Scope) (int, int, error) {
		calls.Add(1)
		return 0, 0, errors.New("database is locked")
	}, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, time.Millisecond)
}
