package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
)

type countingOpener struct {
	calls atomic.Int32
}

func (o *countingOpener) OpenDueRound(ctx context.Context) *domain.Round {
	n := o.calls.Add(1)
	if n == 2 {
		return &domain.Round{ID: 1}
	}
	return nil
}

func newTestWorker(opener RoundOpener) *AutoRoundWorker {
	cfg := &config.SchedulerConfig{Interval: 5 * time.Millisecond, Enabled: true}
	return NewAutoRoundWorker(opener, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAutoRoundWorker_Polls(t *testing.T) {
	opener := &countingOpener{}
	w := newTestWorker(opener)

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return opener.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	after := opener.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, opener.calls.Load())
}

func TestAutoRoundWorker_StopWithoutStart(t *testing.T) {
	w := newTestWorker(&countingOpener{})
	assert.NoError(t, w.Stop())
}

func TestAutoRoundWorker_StopsOnContextCancel(t *testing.T) {
	w := newTestWorker(&countingOpener{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
