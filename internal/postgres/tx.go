package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hitster-live/internal/domain"
)

type tx struct {
	tx pgx.Tx
}

const gameStateColumns = `difficulty, game_status, ended_at, auto_rounds, next_round_at, version`

func (t *tx) scanGameState(ctx context.Context, query string) (domain.GameState, error) {
	var s domain.GameState
	err := t.tx.QueryRow(ctx, query).Scan(
		&s.Difficulty,
		&s.Status,
		&s.EndedAt,
		&s.AutoRounds,
		&s.NextRoundAt,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultGameState(), nil
		}
		return domain.GameState{}, fmt.Errorf("reading game state: %w", err)
	}
	return s, nil
}

func (t *tx) GameState(ctx context.Context) (domain.GameState, error) {
	return t.scanGameState(ctx, `SELECT `+gameStateColumns+` FROM game_state WHERE id = 1 FOR SHARE`)
}

func (t *tx) LockGameState(ctx context.Context) (domain.GameState, error) {
	return t.scanGameState(ctx, `SELECT `+gameStateColumns+` FROM game_state WHERE id = 1 FOR UPDATE`)
}

func (t *tx) SaveGameState(ctx context.Context, s domain.GameState) error {
	query := `
		INSERT INTO game_state (id, difficulty, game_status, ended_at, auto_rounds, next_round_at, version)
		VALUES (1, $1, $2, $3, $4, $5, 1)
		ON CONFLICT (id)
		DO UPDATE SET difficulty = $1, game_status = $2, ended_at = $3, auto_rounds = $4,
			next_round_at = $5, version = game_state.version + 1
	`
	_, err := t.tx.Exec(ctx, query,
		string(s.Difficulty),
		string(s.Status),
		s.EndedAt,
		s.AutoRounds,
		s.NextRoundAt,
	)
	if err != nil {
		return fmt.Errorf("saving game state: %w", err)
	}
	return nil
}

// Rounds

const roundColumns = `id, question, status, correct_song, correct_artist, correct_year, created_at, closed_at`

func scanRound(row pgx.Row) (domain.Round, error) {
	var r domain.Round
	err := row.Scan(
		&r.ID,
		&r.Question,
		&r.Status,
		&r.CorrectSong,
		&r.CorrectArtist,
		&r.CorrectYear,
		&r.CreatedAt,
		&r.ClosedAt,
	)
	return r, err
}

func (t *tx) CountRounds(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rounds: %w", err)
	}
	return n, nil
}

func (t *tx) OpenRound(ctx context.Context) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE status = 'open' ORDER BY id DESC LIMIT 1`
	r, err := scanRound(t.tx.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting open round: %w", err)
	}
	return &r, nil
}

func (t *tx) GetRound(ctx context.Context, id int64) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	r, err := scanRound(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("getting round: %w", err)
	}
	return &r, nil
}

func (t *tx) LastClosedRounds(ctx context.Context, n int) ([]domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE status = 'closed' ORDER BY id DESC LIMIT $1`
	rows, err := t.tx.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("listing closed rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (t *tx) InsertRound(ctx context.Context, question string, now time.Time) (domain.Round, error) {
	query := `
		INSERT INTO rounds (question, status, created_at)
		VALUES ($1, 'open', $2)
		RETURNING ` + roundColumns
	r, err := scanRound(t.tx.QueryRow(ctx, query, question, now))
	if err != nil {
		if isUniqueViolation(err, "rounds_one_open") {
			return domain.Round{}, domain.ErrRoundAlreadyOpen
		}
		return domain.Round{}, fmt.Errorf("inserting round: %w", err)
	}
	return r, nil
}

func (t *tx) UpdateRoundAnswers(ctx context.Context, roundID int64, a domain.Answers) error {
	query := `
		UPDATE rounds SET correct_song = $2, correct_artist = $3, correct_year = $4
		WHERE id = $1 AND status = 'open'
	`
	result, err := t.tx.Exec(ctx, query, roundID, a.Song, a.Artist, a.Year)
	if err != nil {
		return fmt.Errorf("updating round answers: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNoOpenRound
	}
	return nil
}

func (t *tx) CloseRound(ctx context.Context, roundID int64, closedAt time.Time) error {
	query := `UPDATE rounds SET status = 'closed', closed_at = $2 WHERE id = $1 AND status = 'open'`
	result, err := t.tx.Exec(ctx, query, roundID, closedAt)
	if err != nil {
		return fmt.Errorf("closing round: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNoOpenRound
	}
	return nil
}

// Guesses

const guessColumns = `g.round_id, g.player_id, g.guess_song, g.guess_artist, g.guess_year,
	g.points_song, g.points_artist, g.points_year, g.total_points, g.created_at, g.updated_at`

func scanGuess(row pgx.Row, extra ...any) (domain.Guess, error) {
	var g domain.Guess
	dest := []any{
		&g.RoundID,
		&g.PlayerID,
		&g.Song,
		&g.Artist,
		&g.Year,
		&g.Points.Song,
		&g.Points.Artist,
		&g.Points.Year,
		&g.Points.Total,
		&g.CreatedAt,
		&g.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return g, err
}

func (t *tx) ListGuesses(ctx context.Context, roundID int64) ([]domain.Guess, error) {
	query := `SELECT ` + guessColumns + ` FROM guesses g WHERE g.round_id = $1 ORDER BY g.player_id`
	rows, err := t.tx.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("listing guesses: %w", err)
	}
	defer rows.Close()

	var guesses []domain.Guess
	for rows.Next() {
		g, err := scanGuess(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning guess: %w", err)
		}
		guesses = append(guesses, g)
	}
	return guesses, rows.Err()
}

func (t *tx) GetGuess(ctx context.Context, roundID, playerID int64) (*domain.Guess, error) {
	query := `SELECT ` + guessColumns + ` FROM guesses g WHERE g.round_id = $1 AND g.player_id = $2`
	g, err := scanGuess(t.tx.QueryRow(ctx, query, roundID, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting guess: %w", err)
	}
	return &g, nil
}

func (t *tx) UpsertGuess(ctx context.Context, g domain.Guess) error {
	query := `
		INSERT INTO guesses (round_id, player_id, guess_song, guess_artist, guess_year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (round_id, player_id)
		DO UPDATE SET guess_song = $3, guess_artist = $4, guess_year = $5, updated_at = $7
	`
	_, err := t.tx.Exec(ctx, query, g.RoundID, g.PlayerID, g.Song, g.Artist, g.Year, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting guess: %w", err)
	}
	return nil
}

func (t *tx) UpdateGuessPoints(ctx context.Context, roundID int64, points map[int64]domain.Points, now time.Time) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		UPDATE guesses
		SET points_song = $3, points_artist = $4, points_year = $5, total_points = $6, updated_at = $7
		WHERE round_id = $1 AND player_id = $2
	`
	for playerID, p := range points {
		batch.Queue(query, roundID, playerID, p.Song, p.Artist, p.Year, p.Total, now)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("updating guess points: %w", err)
		}
	}
	return nil
}

func (t *tx) queryGuessesWithPlayer(ctx context.Context, query string, roundID int64) ([]domain.GuessWithPlayer, error) {
	rows, err := t.tx.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("listing round guesses: %w", err)
	}
	defer rows.Close()

	var out []domain.GuessWithPlayer
	for rows.Next() {
		var name string
		g, err := scanGuess(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("scanning guess: %w", err)
		}
		out = append(out, domain.GuessWithPlayer{Guess: g, PlayerName: name})
	}
	return out, rows.Err()
}

func (t *tx) RoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error) {
	query := `
		SELECT ` + guessColumns + `, p.name
		FROM guesses g JOIN players p ON p.id = g.player_id
		WHERE g.round_id = $1
		ORDER BY lower(p.name), p.id
	`
	return t.queryGuessesWithPlayer(ctx, query, roundID)
}

func (t *tx) RecentRoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error) {
	query := `
		SELECT ` + guessColumns + `, p.name
		FROM guesses g JOIN players p ON p.id = g.player_id
		WHERE g.round_id = $1
		ORDER BY g.updated_at DESC, lower(p.name), p.id
	`
	return t.queryGuessesWithPlayer(ctx, query, roundID)
}

// Standings

func (t *tx) PlayerTotals(ctx context.Context) ([]domain.PlayerTotal, error) {
	query := `
		SELECT p.id, p.name, COALESCE(SUM(g.total_points) FILTER (WHERE r.status = 'closed'), 0)
		FROM players p
		LEFT JOIN guesses g ON g.player_id = p.id
		LEFT JOIN rounds r ON r.id = g.round_id
		GROUP BY p.id, p.name
		ORDER BY p.id
	`
	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("summing player totals: %w", err)
	}
	defer rows.Close()

	var totals []domain.PlayerTotal
	for rows.Next() {
		var pt domain.PlayerTotal
		if err := rows.Scan(&pt.PlayerID, &pt.PlayerName, &pt.Points); err != nil {
			return nil, fmt.Errorf("scanning player total: %w", err)
		}
		totals = append(totals, pt)
	}
	return totals, rows.Err()
}

func (t *tx) SaveSnapshots(ctx context.Context, snapshots []domain.StandingsSnapshot, now time.Time) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO standings_history (round_id, player_id, rank, points, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (round_id, player_id)
		DO UPDATE SET rank = $3, points = $4, created_at = $5
	`
	for _, s := range snapshots {
		batch.Queue(query, s.RoundID, s.PlayerID, s.Rank, s.Points, now)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("saving standings snapshot: %w", err)
		}
	}
	return nil
}

func (t *tx) SnapshotRanks(ctx context.Context, roundID int64) (map[int64]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT player_id, rank FROM standings_history WHERE round_id = $1`, roundID)
	if err != nil {
		return nil, fmt.Errorf("getting snapshot ranks: %w", err)
	}
	defer rows.Close()

	ranks := make(map[int64]int)
	for rows.Next() {
		var playerID int64
		var rank int
		if err := rows.Scan(&playerID, &rank); err != nil {
			return nil, fmt.Errorf("scanning snapshot rank: %w", err)
		}
		ranks[playerID] = rank
	}
	return ranks, rows.Err()
}

func (t *tx) DeleteGameData(ctx context.Context) error {
	for _, q := range []string{
		`DELETE FROM guesses`,
		`DELETE FROM standings_history`,
		`DELETE FROM rounds`,
	} {
		if _, err := t.tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("deleting game data: %w", err)
		}
	}
	return nil
}

// Players

func (t *tx) InsertPlayer(ctx context.Context, name string, now time.Time) (domain.Player, error) {
	p := domain.Player{Name: name, CreatedAt: now}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO players (name, created_at) VALUES ($1, $2) RETURNING id`,
		name, now,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err, "players_name_lower") {
			return domain.Player{}, domain.ErrPlayerNameTaken
		}
		return domain.Player{}, fmt.Errorf("inserting player: %w", err)
	}
	return p, nil
}

func (t *tx) FindPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	var p domain.Player
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, created_at FROM players WHERE lower(name) = lower($1)`,
		name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding player: %w", err)
	}
	return &p, nil
}

func (t *tx) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	var p domain.Player
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, created_at FROM players WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

func (t *tx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name, created_at FROM players ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
