package store

import (
	"context"
	"time"

	"github.com/hitster-live/internal/domain"
)

// Store is the single source of truth for game data. All reads and writes go
// through WithTx so every operation sees a consistent view.
type Store interface {
	// WithTx runs fn in one serializable transaction. The transaction commits
	// when fn returns nil and rolls back otherwise. Implementations may call fn
	// more than once when the backend reports a serialization failure.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close()
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// Game state
	GameState(ctx context.Context) (domain.GameState, error)
	LockGameState(ctx context.Context) (domain.GameState, error)
	SaveGameState(ctx context.Context, state domain.GameState) error

	// Rounds
	CountRounds(ctx context.Context) (int, error)
	OpenRound(ctx context.Context) (*domain.Round, error)
	GetRound(ctx context.Context, id int64) (*domain.Round, error)
	LastClosedRounds(ctx context.Context, n int) ([]domain.Round, error)
	InsertRound(ctx context.Context, question string, now time.Time) (domain.Round, error)
	UpdateRoundAnswers(ctx context.Context, roundID int64, answers domain.Answers) error
	CloseRound(ctx context.Context, roundID int64, closedAt time.Time) error

	// Guesses
	ListGuesses(ctx context.Context, roundID int64) ([]domain.Guess, error)
	GetGuess(ctx context.Context, roundID, playerID int64) (*domain.Guess, error)
	UpsertGuess(ctx context.Context, guess domain.Guess) error
	UpdateGuessPoints(ctx context.Context, roundID int64, points map[int64]domain.Points, now time.Time) error
	RoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error)
	RecentRoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error)

	// Standings
	PlayerTotals(ctx context.Context) ([]domain.PlayerTotal, error)
	SaveSnapshots(ctx context.Context, snapshots []domain.StandingsSnapshot, now time.Time) error
	SnapshotRanks(ctx context.Context, roundID int64) (map[int64]int, error)

	// DeleteGameData removes rounds, guesses and snapshots. Players survive.
	DeleteGameData(ctx context.Context) error

	// Players
	InsertPlayer(ctx context.Context, name string, now time.Time) (domain.Player, error)
	FindPlayerByName(ctx context.Context, name string) (*domain.Player, error)
	GetPlayer(ctx context.Context, id int64) (*domain.Player, error)
	ListPlayers(ctx context.Context) ([]domain.Player, error)
}
