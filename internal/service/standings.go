package service

import (
	"context"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/standings"
	"github.com/hitster-live/internal/store"
)

// GetStandings returns every player ranked by cumulative points over closed
// rounds, with the rank movement since the previous closed round.
func (s *GameService) GetStandings(ctx context.Context) ([]domain.Standing, error) {
	if s.cache != nil {
		var version int64
		err := s.store.WithTx(ctx, func(tx store.Tx) error {
			state, err := tx.GameState(ctx)
			version = state.Version
			return err
		})
		if err != nil {
			return nil, err
		}
		rows, ok, err := s.cache.Get(ctx, version)
		if err != nil {
			s.logger.Warn("standings cache read failed", "error", err)
		} else if ok {
			return rows, nil
		}
	}

	var rows []domain.Standing
	var version int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		version = state.Version
		rows, err = computeStandings(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, version, rows); err != nil {
			s.logger.Warn("standings cache write failed", "error", err)
		}
	}
	return rows, nil
}

func computeStandings(ctx context.Context, tx store.Tx) ([]domain.Standing, error) {
	totals, err := tx.PlayerTotals(ctx)
	if err != nil {
		return nil, err
	}
	rows := standings.Rank(totals)

	deltas, err := rankDeltas(ctx, tx)
	if err != nil {
		return nil, err
	}
	standings.ApplyDeltas(rows, deltas)
	return rows, nil
}

// rankDeltas compares the snapshots of the two most recent closed rounds. The
// map is empty when no round has closed yet.
func rankDeltas(ctx context.Context, tx store.Tx) (map[int64]int, error) {
	closed, err := tx.LastClosedRounds(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(closed) == 0 {
		return map[int64]int{}, nil
	}

	latest, err := tx.SnapshotRanks(ctx, closed[0].ID)
	if err != nil {
		return nil, err
	}
	var previous map[int64]int
	if len(closed) > 1 {
		previous, err = tx.SnapshotRanks(ctx, closed[1].ID)
		if err != nil {
			return nil, err
		}
	}
	return standings.Deltas(previous, latest), nil
}

// RankDeltas returns the rank movement per player between the two most recent
// closed rounds
func (s *GameService) RankDeltas(ctx context.Context) (map[int64]int, error) {
	var deltas map[int64]int
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		deltas, err = rankDeltas(ctx, tx)
		return err
	})
	return deltas, err
}

// GetLastClosedRoundResults returns the most recently closed round with its
// scored guesses ordered by player name, or nil when no round has closed.
func (s *GameService) GetLastClosedRoundResults(ctx context.Context) (*domain.RoundResults, error) {
	var results *domain.RoundResults
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		results = nil
		closed, err := tx.LastClosedRounds(ctx, 1)
		if err != nil || len(closed) == 0 {
			return err
		}
		guesses, err := tx.RoundGuesses(ctx, closed[0].ID)
		if err != nil {
			return err
		}
		if guesses == nil {
			guesses = []domain.GuessWithPlayer{}
		}
		results = &domain.RoundResults{Round: closed[0], Guesses: guesses}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
