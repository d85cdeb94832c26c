package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/repository"
)

type countingResets struct {
	repository.PasswordResetRepository

	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (c *countingResets) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cutoffs = append(c.cutoffs, cutoff)
	return 1, c.err
}

func (c *countingResets) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cutoffs)
}

func TestStartResetPruner_RunsUntilCancelled(t *testing.T) {
	resets := &countingResets{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartResetPruner(ctx, resets, 10*time.Millisecond, zap.NewNop())

	require.Eventually(t, func() bool { return resets.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
	stopped := resets.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, resets.calls())
}

func TestStartResetPruner_ErrorsKeepLooping(t *testing.T) {
	resets := &countingResets{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartResetPruner(ctx, resets, 10*time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool { return resets.calls() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestStartResetPruner_Disabled(t *testing.T) {
	resets := &countingResets{}
	done := StartResetPruner(context.Background(), resets, 0, zap.NewNop())

	select {
	case <-done:
	default:
		t.Fatal("disabled pruner should report done immediately")
	}
	assert.Zero(t, resets.calls())
}
