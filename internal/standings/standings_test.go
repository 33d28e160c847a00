package standings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitster-live/internal/domain"
)

func TestRank_DenseWithNameTieBreak(t *testing.T) {
	rows := Rank([]domain.PlayerTotal{
		{PlayerID: 1, PlayerName: "cleo", Points: 7},
		{PlayerID: 2, PlayerName: "Ben", Points: 10},
		{PlayerID: 3, PlayerName: "ana", Points: 10},
		{PlayerID: 4, PlayerName: "Dan", Points: -3},
		{PlayerID: 5, PlayerName: "Eve", Points: 0},
	})

	require.Len(t, rows, 5)
	var names []string
	var ranks []int
	for _, r := range rows {
		names = append(names, r.PlayerName)
		ranks = append(ranks, r.Rank)
	}
	assert.Equal(t, []string{"ana", "Ben", "cleo", "Eve", "Dan"}, names)
	assert.Equal(t, []int{1, 1, 2, 3, 4}, ranks)
}

func TestRank_AllTied(t *testing.T) {
	rows := Rank([]domain.PlayerTotal{
		{PlayerID: 1, PlayerName: "B", Points: 10},
		{PlayerID: 2, PlayerName: "A", Points: 10},
		{PlayerID: 3, PlayerName: "C", Points: 10},
	})
	for _, r := range rows {
		assert.Equal(t, 1, r.Rank)
	}
	assert.Equal(t, "A", rows[0].PlayerName)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestDeltas(t *testing.T) {
	previous := map[int64]int{1: 1, 2: 2}
	latest := map[int64]int{1: 2, 2: 1, 3: 3}

	assert.Equal(t, map[int64]int{1: -1, 2: 1, 3: 0}, Deltas(previous, latest))
	assert.Equal(t, map[int64]int{1: 0, 2: 0, 3: 0}, Deltas(nil, latest))
	assert.Empty(t, Deltas(nil, nil))
}

func TestApplyDeltasAndSnapshots(t *testing.T) {
	rows := Rank([]domain.PlayerTotal{
		{PlayerID: 1, PlayerName: "Ana", Points: 5},
		{PlayerID: 2, PlayerName: "Ben", Points: 15},
	})
	ApplyDeltas(rows, map[int64]int{1: -1, 2: 1})
	assert.Equal(t, 1, rows[0].Delta)
	assert.Equal(t, -1, rows[1].Delta)

	snaps := Snapshots(9, rows)
	assert.Equal(t, []domain.StandingsSnapshot{
		{RoundID: 9, PlayerID: 2, Rank: 1, Points: 15},
		{RoundID: 9, PlayerID: 1, Rank: 2, Points: 5},
	}, snaps)
}
