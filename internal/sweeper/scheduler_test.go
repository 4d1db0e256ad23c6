package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cart-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockReleaser struct {
	ReleaseFunc func(ctx context.Context, cutoff time.Time) (service.ReleaseResult, error)
	calls       atomic.Int32
}

func (m *MockReleaser) ReleaseStaleCarts(ctx context.Context, cutoff time.Time) (service.ReleaseResult, error) {
	m.calls.Add(1)
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, cutoff)
	}
	return service.ReleaseResult{}, nil
}

func TestRunOnceNow_Cutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var got time.Time
	m := &MockReleaser{ReleaseFunc: func(_ context.Context, cutoff time.Time) (service.ReleaseResult, error) {
		got = cutoff
		return service.ReleaseResult{Users: 2, Items: 5}, nil
	}}

	s := NewScheduler(m, 72*time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }

	res, err := s.RunOnceNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.ReleaseResult{Users: 2, Items: 5}, res)
	assert.Equal(t, now.Add(-72*time.Hour), got)
}

func TestRunOnceNow_Error(t *testing.T) {
	boom := errors.New("db down")
	m := &MockReleaser{ReleaseFunc: func(context.Context, time.Time) (service.ReleaseResult, error) {
		return service.ReleaseResult{}, boom
	}}
	_, err := NewScheduler(m, time.Hour, zap.NewNop()).RunOnceNow(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	m := &MockReleaser{}
	s := NewScheduler(m, time.Hour, zap.NewNop())

	require.NoError(t, s.Start(context.Background(), "@every 1s"))
	defer s.Stop()

	require.Eventually(t, func() bool { return m.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Error(t, s.Start(context.Background(), "@every 1s"), "second start")
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler(&MockReleaser{}, time.Hour, zap.NewNop())
	assert.Error(t, s.Start(context.Background(), "not a schedule"))
	s.Stop()
}

func TestStop_CancelsJobContext(t *testing.T) {
	started := make(chan struct{})
	var once atomic.Bool
	m := &MockReleaser{ReleaseFunc: func(ctx context.Context, _ time.Time) (service.ReleaseResult, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return service.ReleaseResult{}, ctx.Err()
	}}
	s := NewScheduler(m, time.Hour, zap.NewNop())
	require.NoError(t, s.Start(context.Background(), "@every 1s"))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	done := make(chan struct{})
	go func() { s.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
