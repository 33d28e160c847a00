package domain

import "time"

// Player represents a registered player. Names are unique case-insensitively.
type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Standing is one row of the cumulative ranking
type Standing struct {
	Rank       int    `json:"rank"`
	PlayerID   int64  `json:"player_id"`
	PlayerName string `json:"player"`
	Points     int    `json:"points"`
	Delta      int    `json:"delta"`
}

// PlayerTotal is a player's cumulative points over closed rounds
type PlayerTotal struct {
	PlayerID   int64
	PlayerName string
	Points     int
}

// StandingsSnapshot is the persisted rank of a player as of a closed round
type StandingsSnapshot struct {
	RoundID   int64     `json:"round_id"`
	PlayerID  int64     `json:"player_id"`
	Rank      int       `json:"rank"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
