package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

// RegisterPlayer returns the player with this name, compared without case, or
// creates one. New players bump the game state version since they appear in
// the standings with 0 points.
func (s *GameService) RegisterPlayer(ctx context.Context, name string) (domain.Player, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, false, domain.ErrPlayerNameRequired
	}

	var player domain.Player
	var created bool
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		created = false
		existing, err := tx.FindPlayerByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			player = *existing
			return nil
		}

		state, err := tx.LockGameState(ctx)
		if err != nil {
			return err
		}
		player, err = tx.InsertPlayer(ctx, name, s.clock.Now())
		if err != nil {
			return err
		}
		created = true
		return tx.SaveGameState(ctx, state)
	})
	if errors.Is(err, domain.ErrPlayerNameTaken) {
		// Lost a race with a registration of the same name.
		return s.findPlayer(ctx, name)
	}
	if err != nil {
		return domain.Player{}, false, err
	}

	if created {
		s.logger.Info("player registered", "player_id", player.ID, "name", player.Name)
		s.broadcastStandings(ctx)
	}
	return player, created, nil
}

func (s *GameService) findPlayer(ctx context.Context, name string) (domain.Player, bool, error) {
	var player *domain.Player
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		player, err = tx.FindPlayerByName(ctx, name)
		return err
	})
	if err != nil {
		return domain.Player{}, false, err
	}
	if player == nil {
		return domain.Player{}, false, domain.ErrPlayerNotFound
	}
	return *player, false, nil
}

// GetPlayer returns a player by ID
func (s *GameService) GetPlayer(ctx context.Context, id int64) (domain.Player, error) {
	var player *domain.Player
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		player, err = tx.GetPlayer(ctx, id)
		return err
	})
	if err != nil {
		return domain.Player{}, err
	}
	return *player, nil
}

// ListPlayers returns all players ordered by name
func (s *GameService) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	var players []domain.Player
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		players, err = tx.ListPlayers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if players == nil {
		players = []domain.Player{}
	}
	return players, nil
}

// OpenRoundView is the open round as shown to one player
type OpenRoundView struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Submitted bool   `json:"submitted"`
}

// StateView is what polling clients need to render the game screen
type StateView struct {
	Player           *domain.Player    `json:"player,omitempty"`
	Difficulty       domain.Difficulty `json:"difficulty"`
	GameStatus       domain.GameStatus `json:"game_status"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	DifficultyLocked bool              `json:"difficulty_locked"`
	AutoRounds       bool              `json:"auto_rounds"`
	NextRoundAt      *time.Time        `json:"next_round_at,omitempty"`
	ServerTime       time.Time         `json:"server_time"`
	OpenRound        *OpenRoundView    `json:"open_round"`
}

// GetState returns the current game state. When playerID is set the view says
// whether that player already guessed in the open round. Like GetOpenRound it
// may open a due auto round.
func (s *GameService) GetState(ctx context.Context, playerID *int64) (StateView, error) {
	if _, err := s.GetOpenRound(ctx); err != nil {
		return StateView{}, err
	}

	var view StateView
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		view = StateView{ServerTime: s.clock.Now()}
		state, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		view.Difficulty = state.Difficulty
		view.GameStatus = state.Status
		view.EndedAt = state.EndedAt
		view.AutoRounds = state.AutoRounds
		view.NextRoundAt = state.NextRoundAt

		n, err := tx.CountRounds(ctx)
		if err != nil {
			return err
		}
		view.DifficultyLocked = n > 0

		if playerID != nil {
			view.Player, err = tx.GetPlayer(ctx, *playerID)
			if err != nil {
				return err
			}
		}

		open, err := tx.OpenRound(ctx)
		if err != nil || open == nil {
			return err
		}
		view.OpenRound = &OpenRoundView{ID: open.ID, Question: open.Question}
		if playerID != nil {
			g, err := tx.GetGuess(ctx, open.ID, *playerID)
			if err != nil {
				return err
			}
			view.OpenRound.Submitted = g != nil
		}
		return nil
	})
	if err != nil {
		return StateView{}, err
	}
	return view, nil
}
