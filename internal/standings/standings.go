// Package standings turns cumulative player totals into a dense ranking and
// computes rank movement between two closed rounds.
package standings

import (
	"sort"
	"strings"

	"github.com/hitster-live/internal/domain"
)

// Rank orders totals by points descending, then name case-insensitively, and
// assigns dense ranks: equal points share a rank and the next lower total
// gets the following integer.
func Rank(totals []domain.PlayerTotal) []domain.Standing {
	sorted := make([]domain.PlayerTotal, len(totals))
	copy(sorted, totals)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		an, bn := strings.ToLower(a.PlayerName), strings.ToLower(b.PlayerName)
		if an != bn {
			return an < bn
		}
		return a.PlayerID < b.PlayerID
	})

	out := make([]domain.Standing, len(sorted))
	rank := 0
	for i, t := range sorted {
		if i == 0 || t.Points != sorted[i-1].Points {
			rank++
		}
		out[i] = domain.Standing{
			Rank:       rank,
			PlayerID:   t.PlayerID,
			PlayerName: t.PlayerName,
			Points:     t.Points,
		}
	}
	return out
}

// Deltas returns previous rank minus latest rank for every player in latest.
// Positive means the player moved up. Players missing from previous, or a nil
// previous, get 0.
func Deltas(previous, latest map[int64]int) map[int64]int {
	out := make(map[int64]int, len(latest))
	for playerID, lr := range latest {
		pr, ok := previous[playerID]
		if !ok {
			out[playerID] = 0
			continue
		}
		out[playerID] = pr - lr
	}
	return out
}

// ApplyDeltas copies deltas onto the ranked rows
func ApplyDeltas(rows []domain.Standing, deltas map[int64]int) {
	for i := range rows {
		rows[i].Delta = deltas[rows[i].PlayerID]
	}
}

// Snapshots converts a ranking into per-round snapshot rows
func Snapshots(roundID int64, rows []domain.Standing) []domain.StandingsSnapshot {
	out := make([]domain.StandingsSnapshot, len(rows))
	for i, r := range rows {
		out[i] = domain.StandingsSnapshot{
			RoundID:  roundID,
			PlayerID: r.PlayerID,
			Rank:     r.Rank,
			Points:   r.Points,
		}
	}
	return out
}
