package service

import (
	"context"
	"errors"
	"time"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

// errNotDue aborts a claim whose preconditions no longer hold
var errNotDue = errors.New("auto round not due")

// SetAutoRounds turns the auto-round scheduler on or off. Turning it off
// drops any armed round.
func (s *GameService) SetAutoRounds(ctx context.Context, enabled bool) (domain.GameState, error) {
	var state domain.GameState
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		state, err = tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		state.AutoRounds = enabled
		if !enabled {
			state.NextRoundAt = nil
		}
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	s.logger.Info("auto rounds changed", "enabled", enabled)
	s.notifier.BroadcastGameState(state)
	return state, nil
}

// ArmNextRound schedules the next auto round delay from now. It does nothing
// while auto rounds are off.
func (s *GameService) ArmNextRound(ctx context.Context, delay time.Duration) (domain.GameState, error) {
	if delay < 0 {
		return domain.GameState{}, domain.ErrInvalidDelay
	}

	var state domain.GameState
	var armed bool
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		armed = false
		var err error
		state, err = tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.AutoRounds {
			return nil
		}
		next := s.clock.Now().Add(delay)
		state.NextRoundAt = &next
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		armed = true
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	if armed {
		s.logger.Info("next round armed", "next_round_at", state.NextRoundAt)
		s.notifier.BroadcastGameState(state)
	}
	return state, nil
}

// GetOpenRound returns the open round, or nil when none is open. If an auto
// round is due it is opened first.
func (s *GameService) GetOpenRound(ctx context.Context) (*domain.Round, error) {
	var open *domain.Round
	var due bool
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		open, err = tx.OpenRound(ctx)
		if err != nil {
			return err
		}
		due = open == nil && state.RoundDue(s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if due {
		if round := s.claimAutoRound(ctx); round != nil {
			return round, nil
		}
		// Another caller may have won the claim.
		return s.openRound(ctx)
	}
	return open, nil
}

// OpenDueRound opens the armed auto round if it is due and returns it. It
// returns nil when nothing was opened. The auto-round worker polls this.
func (s *GameService) OpenDueRound(ctx context.Context) *domain.Round {
	var due bool
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.GameState(ctx)
		due = err == nil && state.RoundDue(s.clock.Now())
		return err
	})
	if err != nil {
		s.logger.Debug("auto round check failed", "error", err)
		return nil
	}
	if !due {
		return nil
	}
	return s.claimAutoRound(ctx)
}

// claimAutoRound re-checks every precondition inside the transaction that
// inserts the round. Losing the race is expected, so failures are only
// logged at debug level.
func (s *GameService) claimAutoRound(ctx context.Context) *domain.Round {
	var round domain.Round
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.RoundDue(s.clock.Now()) {
			return errNotDue
		}
		round, err = s.insertRound(ctx, tx, state, "")
		return err
	})
	if err != nil {
		s.logger.Debug("auto round claim skipped", "error", err)
		return nil
	}

	s.logger.Info("auto round opened", "round_id", round.ID, "question", round.Question)
	s.notifier.BroadcastRoundOpened(round)
	return &round
}

func (s *GameService) openRound(ctx context.Context) (*domain.Round, error) {
	var open *domain.Round
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		open, err = tx.OpenRound(ctx)
		return err
	})
	return open, err
}
