package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
)

// RoundOpener opens the armed auto round once it is due
type RoundOpener interface {
	OpenDueRound(ctx context.Context) *domain.Round
}

// AutoRoundWorker polls for a due auto round so rounds open even when no
// client is reading the game state
type AutoRoundWorker struct {
	opener  RoundOpener
	config  *config.SchedulerConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewAutoRoundWorker creates a new auto-round worker
func NewAutoRoundWorker(
	opener RoundOpener,
	cfg *config.SchedulerConfig,
	logger *slog.Logger,
) *AutoRoundWorker {
	return &AutoRoundWorker{
		opener: opener,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins polling in the background
func (w *AutoRoundWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("auto-round worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops polling and waits for the loop to exit
func (w *AutoRoundWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("auto-round worker stopped")
	return nil
}

// run is the main worker loop
func (w *AutoRoundWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutoRoundWorker) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, w.config.Interval)
	defer cancel()

	if round := w.opener.OpenDueRound(tickCtx); round != nil {
		w.logger.Debug("worker opened auto round", "round_id", round.ID)
	}
}
