package service

import (
	"context"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

// SubmitGuess records a player's guess for the open round. Submitting again
// overwrites the earlier guess.
func (s *GameService) SubmitGuess(ctx context.Context, sub domain.GuessSubmission) (domain.Guess, error) {
	now := s.clock.Now()
	guess := domain.Guess{
		RoundID:   sub.RoundID,
		PlayerID:  sub.PlayerID,
		Song:      domain.OptionalText(sub.Song),
		Artist:    domain.OptionalText(sub.Artist),
		Year:      domain.ParseOptionalInt(sub.Year),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var saved domain.Guess
	var playerName string
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if !state.Running() {
			return domain.ErrGameEnded
		}

		open, err := tx.OpenRound(ctx)
		if err != nil {
			return err
		}
		if open == nil {
			return domain.ErrNoOpenRound
		}
		if open.ID != sub.RoundID {
			return domain.ErrStaleRound
		}

		if guess.Empty() {
			return domain.ErrEmptyGuess
		}

		player, err := tx.GetPlayer(ctx, sub.PlayerID)
		if err != nil {
			return err
		}
		playerName = player.Name

		if err := tx.UpsertGuess(ctx, guess); err != nil {
			return err
		}
		stored, err := tx.GetGuess(ctx, sub.RoundID, sub.PlayerID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrRoundNotFound
		}
		saved = *stored
		return nil
	})
	if err != nil {
		return domain.Guess{}, err
	}

	s.logger.Debug("guess submitted", "round_id", saved.RoundID, "player_id", saved.PlayerID)
	s.notifier.BroadcastGuessSubmitted(saved.RoundID, playerName)
	return saved, nil
}

// GetMyGuess returns the player's guess for a round, or nil when there is none
func (s *GameService) GetMyGuess(ctx context.Context, roundID, playerID int64) (*domain.Guess, error) {
	var guess *domain.Guess
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		guess, err = tx.GetGuess(ctx, roundID, playerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return guess, nil
}

// OpenRoundGuesses is the live view of the open round for the host, most
// recently changed first.
type OpenRoundGuesses struct {
	Round   *domain.Round            `json:"round"`
	Guesses []domain.GuessWithPlayer `json:"guesses"`
}

// OpenRoundGuesses lists the guesses of the open round. It never triggers the
// auto-round scheduler.
func (s *GameService) OpenRoundGuesses(ctx context.Context) (OpenRoundGuesses, error) {
	var out OpenRoundGuesses
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		out = OpenRoundGuesses{}
		open, err := tx.OpenRound(ctx)
		if err != nil || open == nil {
			return err
		}
		out.Round = open
		out.Guesses, err = tx.RecentRoundGuesses(ctx, open.ID)
		return err
	})
	if err != nil {
		return OpenRoundGuesses{}, err
	}
	if out.Guesses == nil {
		out.Guesses = []domain.GuessWithPlayer{}
	}
	return out, nil
}
