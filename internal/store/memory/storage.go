package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

// Storage is an in-memory implementation of the store. Transactions are
// serialized by a single mutex and run against a copy of the data, which
// replaces the live data only when the transaction succeeds.
type Storage struct {
	mu   sync.Mutex
	data *dataset
}

type guessKey struct {
	roundID  int64
	playerID int64
}

type dataset struct {
	state        domain.GameState
	players      map[int64]domain.Player
	rounds       map[int64]domain.Round
	guesses      map[guessKey]domain.Guess
	snapshots    map[guessKey]domain.StandingsSnapshot
	nextPlayerID int64
	nextRoundID  int64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		data: &dataset{
			state:        domain.DefaultGameState(),
			players:      make(map[int64]domain.Player),
			rounds:       make(map[int64]domain.Round),
			guesses:      make(map[guessKey]domain.Guess),
			snapshots:    make(map[guessKey]domain.StandingsSnapshot),
			nextPlayerID: 1,
			nextRoundID:  1,
		},
	}
}

// Ensure Storage implements the interface
var _ store.Store = (*Storage)(nil)

// WithTx runs fn with exclusive access to a private copy of the data
func (s *Storage) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Close() {}

func (d *dataset) clone() *dataset {
	c := &dataset{
		state:        cloneState(d.state),
		players:      make(map[int64]domain.Player, len(d.players)),
		rounds:       make(map[int64]domain.Round, len(d.rounds)),
		guesses:      make(map[guessKey]domain.Guess, len(d.guesses)),
		snapshots:    make(map[guessKey]domain.StandingsSnapshot, len(d.snapshots)),
		nextPlayerID: d.nextPlayerID,
		nextRoundID:  d.nextRoundID,
	}
	for k, v := range d.players {
		c.players[k] = v
	}
	for k, v := range d.rounds {
		c.rounds[k] = v
	}
	for k, v := range d.guesses {
		c.guesses[k] = v
	}
	for k, v := range d.snapshots {
		c.snapshots[k] = v
	}
	return c
}

// Rounds and guesses hold pointer fields that are only ever replaced, never
// written through, so a shallow copy is enough. Game state is copied deeper
// because callers keep it across transactions.
func cloneState(s domain.GameState) domain.GameState {
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	if s.NextRoundAt != nil {
		t := *s.NextRoundAt
		s.NextRoundAt = &t
	}
	return s
}

type tx struct {
	d *dataset
}

// Game state

func (t *tx) GameState(ctx context.Context) (domain.GameState, error) {
	return cloneState(t.d.state), nil
}

func (t *tx) LockGameState(ctx context.Context) (domain.GameState, error) {
	return cloneState(t.d.state), nil
}

func (t *tx) SaveGameState(ctx context.Context, state domain.GameState) error {
	state = cloneState(state)
	state.Version = t.d.state.Version + 1
	t.d.state = state
	return nil
}

// Round operations

func (t *tx) CountRounds(ctx context.Context) (int, error) {
	return len(t.d.rounds), nil
}

func (t *tx) OpenRound(ctx context.Context) (*domain.Round, error) {
	var open *domain.Round
	for _, r := range t.d.rounds {
		if r.IsOpen() && (open == nil || r.ID > open.ID) {
			r := r
			open = &r
		}
	}
	return open, nil
}

func (t *tx) GetRound(ctx context.Context, id int64) (*domain.Round, error) {
	r, ok := t.d.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return &r, nil
}

func (t *tx) LastClosedRounds(ctx context.Context, n int) ([]domain.Round, error) {
	var closed []domain.Round
	for _, r := range t.d.rounds {
		if r.Status == domain.RoundStatusClosed {
			closed = append(closed, r)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID > closed[j].ID })
	if len(closed) > n {
		closed = closed[:n]
	}
	return closed, nil
}

func (t *tx) InsertRound(ctx context.Context, question string, now time.Time) (domain.Round, error) {
	for _, r := range t.d.rounds {
		if r.IsOpen() {
			return domain.Round{}, domain.ErrRoundAlreadyOpen
		}
	}
	r := domain.Round{
		ID:        t.d.nextRoundID,
		Question:  question,
		Status:    domain.RoundStatusOpen,
		CreatedAt: now,
	}
	t.d.nextRoundID++
	t.d.rounds[r.ID] = r
	return r, nil
}

func (t *tx) UpdateRoundAnswers(ctx context.Context, roundID int64, answers domain.Answers) error {
	r, ok := t.d.rounds[roundID]
	if !ok || !r.IsOpen() {
		return domain.ErrNoOpenRound
	}
	r.CorrectSong = answers.Song
	r.CorrectArtist = answers.Artist
	r.CorrectYear = answers.Year
	t.d.rounds[roundID] = r
	return nil
}

func (t *tx) CloseRound(ctx context.Context, roundID int64, closedAt time.Time) error {
	r, ok := t.d.rounds[roundID]
	if !ok || !r.IsOpen() {
		return domain.ErrNoOpenRound
	}
	r.Status = domain.RoundStatusClosed
	r.ClosedAt = &closedAt
	t.d.rounds[roundID] = r
	return nil
}

// Guess operations

func (t *tx) ListGuesses(ctx context.Context, roundID int64) ([]domain.Guess, error) {
	var out []domain.Guess
	for k, g := range t.d.guesses {
		if k.roundID == roundID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (t *tx) GetGuess(ctx context.Context, roundID, playerID int64) (*domain.Guess, error) {
	g, ok := t.d.guesses[guessKey{roundID, playerID}]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (t *tx) UpsertGuess(ctx context.Context, guess domain.Guess) error {
	if _, ok := t.d.rounds[guess.RoundID]; !ok {
		return domain.ErrRoundNotFound
	}
	if _, ok := t.d.players[guess.PlayerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	key := guessKey{guess.RoundID, guess.PlayerID}
	if existing, ok := t.d.guesses[key]; ok {
		existing.Song = guess.Song
		existing.Artist = guess.Artist
		existing.Year = guess.Year
		existing.UpdatedAt = guess.UpdatedAt
		t.d.guesses[key] = existing
		return nil
	}
	t.d.guesses[key] = guess
	return nil
}

func (t *tx) UpdateGuessPoints(ctx context.Context, roundID int64, points map[int64]domain.Points, now time.Time) error {
	for playerID, p := range points {
		key := guessKey{roundID, playerID}
		g, ok := t.d.guesses[key]
		if !ok {
			continue
		}
		g.Points = p
		g.UpdatedAt = now
		t.d.guesses[key] = g
	}
	return nil
}

func (t *tx) RoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error) {
	out := t.joinGuesses(roundID)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].PlayerName) < strings.ToLower(out[j].PlayerName)
	})
	return out, nil
}

func (t *tx) RecentRoundGuesses(ctx context.Context, roundID int64) ([]domain.GuessWithPlayer, error) {
	out := t.joinGuesses(roundID)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return strings.ToLower(out[i].PlayerName) < strings.ToLower(out[j].PlayerName)
	})
	return out, nil
}

func (t *tx) joinGuesses(roundID int64) []domain.GuessWithPlayer {
	var out []domain.GuessWithPlayer
	for k, g := range t.d.guesses {
		if k.roundID != roundID {
			continue
		}
		out = append(out, domain.GuessWithPlayer{
			Guess:      g,
			PlayerName: t.d.players[g.PlayerID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Standings operations

func (t *tx) PlayerTotals(ctx context.Context) ([]domain.PlayerTotal, error) {
	sums := make(map[int64]int, len(t.d.players))
	for k, g := range t.d.guesses {
		if r, ok := t.d.rounds[k.roundID]; ok && r.Status == domain.RoundStatusClosed {
			sums[k.playerID] += g.Points.Total
		}
	}
	out := make([]domain.PlayerTotal, 0, len(t.d.players))
	for id, p := range t.d.players {
		out = append(out, domain.PlayerTotal{PlayerID: id, PlayerName: p.Name, Points: sums[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (t *tx) SaveSnapshots(ctx context.Context, snapshots []domain.StandingsSnapshot, now time.Time) error {
	for _, s := range snapshots {
		s.CreatedAt = now
		t.d.snapshots[guessKey{s.RoundID, s.PlayerID}] = s
	}
	return nil
}

func (t *tx) SnapshotRanks(ctx context.Context, roundID int64) (map[int64]int, error) {
	out := make(map[int64]int)
	for k, s := range t.d.snapshots {
		if k.roundID == roundID {
			out[k.playerID] = s.Rank
		}
	}
	return out, nil
}

func (t *tx) DeleteGameData(ctx context.Context) error {
	t.d.rounds = make(map[int64]domain.Round)
	t.d.guesses = make(map[guessKey]domain.Guess)
	t.d.snapshots = make(map[guessKey]domain.StandingsSnapshot)
	return nil
}

// Player operations

func (t *tx) InsertPlayer(ctx context.Context, name string, now time.Time) (domain.Player, error) {
	if existing, _ := t.FindPlayerByName(ctx, name); existing != nil {
		return domain.Player{}, domain.ErrPlayerNameTaken
	}
	p := domain.Player{ID: t.d.nextPlayerID, Name: name, CreatedAt: now}
	t.d.nextPlayerID++
	t.d.players[p.ID] = p
	return p, nil
}

func (t *tx) FindPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	for _, p := range t.d.players {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *tx) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	p, ok := t.d.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (t *tx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	out := make([]domain.Player, 0, len(t.d.players))
	for _, p := range t.d.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
