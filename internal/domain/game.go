package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Difficulty selects the year scoring curve
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// ParseDifficulty accepts easy, hard or extreme in any case
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyHard, DifficultyExtreme:
		return d, nil
	default:
		return "", ErrInvalidDifficulty
	}
}

// GameStatus is the global running/ended switch
type GameStatus string

const (
	GameStatusRunning GameStatus = "running"
	GameStatusEnded   GameStatus = "ended"
)

// RoundStatus is the lifecycle state of a single round
type RoundStatus string

const (
	RoundStatusOpen   RoundStatus = "open"
	RoundStatusClosed RoundStatus = "closed"
)

// GameState is the single versioned settings record. It is read and written
// inside the same transaction as any round mutation and never cached.
type GameState struct {
	Difficulty  Difficulty `json:"difficulty"`
	Status      GameStatus `json:"game_status"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	AutoRounds  bool       `json:"auto_rounds"`
	NextRoundAt *time.Time `json:"next_round_at,omitempty"`
	Version     int64      `json:"version"`
}

// DefaultGameState returns the state of a freshly reset game
func DefaultGameState() GameState {
	return GameState{
		Difficulty: DifficultyEasy,
		Status:     GameStatusRunning,
	}
}

// Running reports whether submissions and round mutations are allowed
func (s GameState) Running() bool {
	return s.Status != GameStatusEnded
}

// RoundDue reports whether the scheduler should open a round at now
func (s GameState) RoundDue(now time.Time) bool {
	return s.Running() && s.AutoRounds && s.NextRoundAt != nil && !now.Before(*s.NextRoundAt)
}

// Round is one question cycle
type Round struct {
	ID            int64       `json:"id"`
	Question      string      `json:"question"`
	Status        RoundStatus `json:"status"`
	CorrectSong   *string     `json:"correct_song,omitempty"`
	CorrectArtist *string     `json:"correct_artist,omitempty"`
	CorrectYear   *int        `json:"correct_year,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
}

// IsOpen reports whether guesses are still accepted
func (r Round) IsOpen() bool {
	return r.Status == RoundStatusOpen
}

// Answers holds the host-entered correct values for a round
type Answers struct {
	Song   *string
	Artist *string
	Year   *int
}

// Points is the per-guess scoring breakdown
type Points struct {
	Song   int `json:"points_song"`
	Artist int `json:"points_artist"`
	Year   int `json:"points_year"`
	Total  int `json:"total_points"`
}

// Guess is one player's answer for one round
type Guess struct {
	RoundID   int64     `json:"round_id"`
	PlayerID  int64     `json:"player_id"`
	Song      *string   `json:"guess_song,omitempty"`
	Artist    *string   `json:"guess_artist,omitempty"`
	Year      *int      `json:"guess_year,omitempty"`
	Points    Points    `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether no field was answered
func (g Guess) Empty() bool {
	return g.Song == nil && g.Artist == nil && g.Year == nil
}

// GuessWithPlayer is a guess joined with its player's display name
type GuessWithPlayer struct {
	Guess
	PlayerName string `json:"player"`
}

// RoundResults is the scored outcome of a closed round
type RoundResults struct {
	Round   Round             `json:"round"`
	Guesses []GuessWithPlayer `json:"guesses"`
}

// GuessSubmission is a raw guess as typed by a player. Blank fields and a
// malformed year count as not answered.
type GuessSubmission struct {
	RoundID  int64  `json:"round_id"`
	PlayerID int64  `json:"player_id"`
	Song     string `json:"guess_song"`
	Artist   string `json:"guess_artist"`
	Year     string `json:"guess_year"`
}

// UnmarshalJSON accepts the year as a JSON string or number.
func (g *GuessSubmission) UnmarshalJSON(data []byte) error {
	var raw struct {
		RoundID  int64       `json:"round_id"`
		PlayerID int64       `json:"player_id"`
		Song     LooseString `json:"guess_song"`
		Artist   LooseString `json:"guess_artist"`
		Year     LooseString `json:"guess_year"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = GuessSubmission{
		RoundID:  raw.RoundID,
		PlayerID: raw.PlayerID,
		Song:     string(raw.Song),
		Artist:   string(raw.Artist),
		Year:     string(raw.Year),
	}
	return nil
}

// LooseString decodes a JSON string, number or null into text. Form-style
// clients send years either way.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}
