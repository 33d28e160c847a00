package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitster-live/internal/clock"
	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/scoring"
	"github.com/hitster-live/internal/standings"
	"github.com/hitster-live/internal/store"
)

// StandingsCache stores computed standings by game state version
type StandingsCache interface {
	Get(ctx context.Context, version int64) ([]domain.Standing, bool, error)
	Set(ctx context.Context, version int64, rows []domain.Standing) error
}

// Notifier receives game events after they are committed
type Notifier interface {
	BroadcastRoundOpened(round domain.Round)
	BroadcastRoundClosed(results domain.RoundResults)
	BroadcastStandings(rows []domain.Standing)
	BroadcastGameState(state domain.GameState)
	BroadcastGuessSubmitted(roundID int64, playerName string)
}

type noopNotifier struct{}

func (noopNotifier) BroadcastRoundOpened(domain.Round) {}
func (noopNotifier) BroadcastRoundClosed(domain.RoundResults) {}
func (noopNotifier) BroadcastStandings([]domain.Standing) {}
func (noopNotifier) BroadcastGameState(domain.GameState) {}
func (noopNotifier) BroadcastGuessSubmitted(int64, string) {}

// GameService runs the round lifecycle, the guess ledger and the standings.
// Every operation reads and writes through one store transaction; nothing
// game related is held in memory between calls.
type GameService struct {
	store    store.Store
	cache    StandingsCache
	notifier Notifier
	clock    clock.Clock
	config   *config.GameConfig
	logger   *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(
	st store.Store,
	cfg *config.GameConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		store:    st,
		notifier: noopNotifier{},
		clock:    clk,
		config:   cfg,
		logger:   logger,
	}
}

// SetCache enables the standings cache
func (s *GameService) SetCache(cache StandingsCache) {
	s.cache = cache
}

// Ping checks that the store is reachable
func (s *GameService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SetNotifier sets the receiver of game events
func (s *GameService) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// CreateRound opens a new round. A blank question gets the automatic
// "{prefix}{n}" name.
func (s *GameService) CreateRound(ctx context.Context, question string) (domain.Round, error) {
	var round domain.Round
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.Running() {
			return domain.ErrGameNotRunning
		}
		round, err = s.insertRound(ctx, tx, state, question)
		return err
	})
	if err != nil {
		return domain.Round{}, err
	}

	s.logger.Info("round opened", "round_id", round.ID, "question", round.Question)
	s.notifier.BroadcastRoundOpened(round)
	return round, nil
}

// insertRound requires that state was locked by the caller. It clears any
// pending auto-round since a round is now open.
func (s *GameService) insertRound(ctx context.Context, tx store.Tx, state domain.GameState, question string) (domain.Round, error) {
	open, err := tx.OpenRound(ctx)
	if err != nil {
		return domain.Round{}, err
	}
	if open != nil {
		return domain.Round{}, domain.ErrRoundAlreadyOpen
	}

	question = strings.TrimSpace(question)
	if question == "" {
		n, err := tx.CountRounds(ctx)
		if err != nil {
			return domain.Round{}, err
		}
		question = fmt.Sprintf("%s%d", s.config.AutoRoundPrefix, n+1)
	}

	round, err := tx.InsertRound(ctx, question, s.clock.Now())
	if err != nil {
		return domain.Round{}, err
	}

	state.NextRoundAt = nil
	if err := tx.SaveGameState(ctx, state); err != nil {
		return domain.Round{}, err
	}
	return round, nil
}

// SetAnswers stores the correct answers of the open round. Blank values and a
// malformed year are stored as absent.
func (s *GameService) SetAnswers(ctx context.Context, song, artist, year string) (domain.Round, error) {
	answers := domain.Answers{
		Song:   domain.OptionalText(song),
		Artist: domain.OptionalText(artist),
		Year:   domain.ParseOptionalInt(year),
	}

	var round domain.Round
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.Running() {
			return domain.ErrGameNotRunning
		}
		open, err := tx.OpenRound(ctx)
		if err != nil {
			return err
		}
		if open == nil {
			return domain.ErrNoOpenRound
		}
		if err := tx.UpdateRoundAnswers(ctx, open.ID, answers); err != nil {
			return err
		}
		round = *open
		round.CorrectSong, round.CorrectArtist, round.CorrectYear = answers.Song, answers.Artist, answers.Year
		return tx.SaveGameState(ctx, state)
	})
	if err != nil {
		return domain.Round{}, err
	}
	return round, nil
}

// CloseRound scores the open round, closes it and snapshots the standings in
// one transaction.
func (s *GameService) CloseRound(ctx context.Context) (domain.RoundResults, error) {
	var results domain.RoundResults
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		state, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.Running() {
			return domain.ErrGameNotRunning
		}
		open, err := tx.OpenRound(ctx)
		if err != nil {
			return err
		}
		if open == nil {
			return domain.ErrNoOpenRound
		}
		results, err = s.closeRound(ctx, tx, &state, *open)
		if err != nil {
			return err
		}
		return tx.SaveGameState(ctx, state)
	})
	if err != nil {
		return domain.RoundResults{}, err
	}

	s.logger.Info("round closed", "round_id", results.Round.ID, "guesses", len(results.Guesses))
	s.notifier.BroadcastRoundClosed(results)
	s.broadcastStandings(ctx)
	return results, nil
}

// closeRound scores and closes round and writes its standings snapshot. When
// auto rounds are on the next round is armed on state; the caller saves it.
func (s *GameService) closeRound(ctx context.Context, tx store.Tx, state *domain.GameState, round domain.Round) (domain.RoundResults, error) {
	now := s.clock.Now()

	guesses, err := tx.ListGuesses(ctx, round.ID)
	if err != nil {
		return domain.RoundResults{}, err
	}
	points := scoring.ScoreRound(round, state.Difficulty, guesses)
	if err := tx.UpdateGuessPoints(ctx, round.ID, points, now); err != nil {
		return domain.RoundResults{}, err
	}
	if err := tx.CloseRound(ctx, round.ID, now); err != nil {
		return domain.RoundResults{}, err
	}

	totals, err := tx.PlayerTotals(ctx)
	if err != nil {
		return domain.RoundResults{}, err
	}
	rows := standings.Rank(totals)
	if err := tx.SaveSnapshots(ctx, standings.Snapshots(round.ID, rows), now); err != nil {
		return domain.RoundResults{}, err
	}

	if state.Running() && state.AutoRounds {
		next := now.Add(s.config.AutoRoundDelay)
		state.NextRoundAt = &next
	}

	scored, err := tx.RoundGuesses(ctx, round.ID)
	if err != nil {
		return domain.RoundResults{}, err
	}
	round.Status = domain.RoundStatusClosed
	round.ClosedAt = &now
	return domain.RoundResults{Round: round, Guesses: scored}, nil
}

// EndGame closes the open round, if any, and stops the game. Ending an ended
// game is a no-op.
func (s *GameService) EndGame(ctx context.Context) (domain.GameState, error) {
	var state domain.GameState
	var closed *domain.RoundResults
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		closed = nil
		var err error
		state, err = tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if !state.Running() {
			return nil
		}

		open, err := tx.OpenRound(ctx)
		if err != nil {
			return err
		}
		if open != nil {
			results, err := s.closeRound(ctx, tx, &state, *open)
			if err != nil {
				return err
			}
			closed = &results
		}

		now := s.clock.Now()
		state.Status = domain.GameStatusEnded
		state.EndedAt = &now
		state.AutoRounds = false
		state.NextRoundAt = nil
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	s.logger.Info("game ended", "closed_round", closed != nil)
	if closed != nil {
		s.notifier.BroadcastRoundClosed(*closed)
		s.broadcastStandings(ctx)
	}
	s.notifier.BroadcastGameState(state)
	return state, nil
}

// ResumeGame lets a stopped game continue. No round is reopened.
func (s *GameService) ResumeGame(ctx context.Context) (domain.GameState, error) {
	var state domain.GameState
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		state, err = tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if state.Running() {
			return nil
		}
		state.Status = domain.GameStatusRunning
		state.EndedAt = nil
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	s.logger.Info("game resumed")
	s.notifier.BroadcastGameState(state)
	return state, nil
}

// ResetGame deletes all rounds, guesses and snapshots and restores the
// default settings. Players are kept.
func (s *GameService) ResetGame(ctx context.Context) (domain.GameState, error) {
	var state domain.GameState
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		if err := tx.DeleteGameData(ctx); err != nil {
			return err
		}
		state = domain.DefaultGameState()
		state.Version = current.Version
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	s.logger.Info("game reset")
	s.notifier.BroadcastGameState(state)
	s.broadcastStandings(ctx)
	return state, nil
}

// SetDifficulty changes the year scoring curve. It is locked once any round
// has been created.
func (s *GameService) SetDifficulty(ctx context.Context, value string) (domain.GameState, error) {
	difficulty, err := domain.ParseDifficulty(value)
	if err != nil {
		return domain.GameState{}, err
	}

	var state domain.GameState
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		state, err = tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		n, err := tx.CountRounds(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDifficultyLocked
		}
		state.Difficulty = difficulty
		if err := tx.SaveGameState(ctx, state); err != nil {
			return err
		}
		state.Version++
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}

	s.logger.Info("difficulty changed", "difficulty", difficulty)
	s.notifier.BroadcastGameState(state)
	return state, nil
}

func (s *GameService) broadcastStandings(ctx context.Context) {
	rows, err := s.GetStandings(ctx)
	if err != nil {
		s.logger.Warn("failed to load standings for broadcast", "error", err)
		return
	}
	s.notifier.BroadcastStandings(rows)
}
