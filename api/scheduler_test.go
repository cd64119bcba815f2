package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRecomputer struct {
	calls   atomic.Int32
	changed int
	err     error
}

func (f *fakeRecomputer) RecomputeAll(context.Context) (int, error) {
	f.calls.Add(1)
	return f.changed, f.err
}

func TestRecomputeScheduler_RunsOnTicker(t *testing.T) {
	// GIVEN an enabled scheduler with a short interval
	rec := &fakeRecomputer{changed: 2}
	s := NewRecomputeScheduler(rec, nil)
	s.Enabled = true
	s.Interval = 10 * time.Millisecond

	// WHEN it runs for a while
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op
	require.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// THEN the last run is recorded and no more runs happen after Stop
	last := s.LastRun()
	assert.Equal(t, 2, last.Changed)
	assert.NoError(t, last.Err)
	assert.False(t, last.FinishedAt.Before(last.StartedAt))

	calls := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.calls.Load())
}

func TestRecomputeScheduler_Disabled(t *testing.T) {
	rec := &fakeRecomputer{}
	s := NewRecomputeScheduler(rec, nil)
	s.Interval = time.Millisecond

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, rec.calls.Load())
	assert.True(t, s.LastRun().StartedAt.IsZero())
}

func TestRecomputeScheduler_RunOnceLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := &fakeRecomputer{err: errors.New("store down")}
	s := NewRecomputeScheduler(rec, zap.New(core))

	n, err := s.RunOnce(context.Background())

	assert.Zero(t, n)
	assert.EqualError(t, err, "store down")
	assert.EqualError(t, s.LastRun().Err, "store down")

	entries := logs.FilterMessage("paid status recompute failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRecomputeScheduler_StopWithoutStart(t *testing.T) {
	s := NewRecomputeScheduler(&fakeRecomputer{}, nil)
	assert.NotPanics(t, s.Stop)
}
