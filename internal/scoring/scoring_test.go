package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hitster-live/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }

func TestYearPoints(t *testing.T) {
	tests := []struct {
		diff                int
		easy, hard, extreme int
	}{
		{0, 5, 10, 10},
		{1, 4, 8, 0},
		{-1, 4, 8, 0},
		{2, 3, 6, 0},
		{3, 2, 4, 0},
		{5, 2, 4, 0},
		{6, 1, 2, 0},
		{10, 1, 2, 0},
		{11, 0, -4, -5},
		{-40, 0, -4, -5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.easy, YearPoints(tt.diff, domain.DifficultyEasy), "easy d=%d", tt.diff)
		assert.Equal(t, tt.hard, YearPoints(tt.diff, domain.DifficultyHard), "hard d=%d", tt.diff)
		assert.Equal(t, tt.extreme, YearPoints(tt.diff, domain.DifficultyExtreme), "extreme d=%d", tt.diff)
	}
}

func TestYearPoints_UnknownDifficulty(t *testing.T) {
	assert.Equal(t, 0, YearPoints(0, domain.Difficulty("nightmare")))
}

func TestTextMatchPoints(t *testing.T) {
	assert.Equal(t, 5, TextMatchPoints(strPtr("  yesterday "), strPtr("Yesterday")))
	assert.Equal(t, 5, TextMatchPoints(strPtr("the   BEATLES"), strPtr("The Beatles")))
	assert.Equal(t, 5, TextMatchPoints(strPtr("ÉCOLE"), strPtr("école")))
	assert.Equal(t, 0, TextMatchPoints(strPtr("Beatles"), strPtr("The Beatles")))
	assert.Equal(t, 0, TextMatchPoints(nil, strPtr("Yesterday")))
	assert.Equal(t, 0, TextMatchPoints(strPtr("Yesterday"), nil))
	assert.Equal(t, 0, TextMatchPoints(strPtr(""), strPtr("   ")))
}

func TestScoreGuess(t *testing.T) {
	answers := domain.Answers{Song: strPtr("Dancing Queen"), Artist: strPtr("ABBA"), Year: intPtr(1976)}

	p := ScoreGuess(answers, domain.DifficultyHard, domain.Guess{
		Song:   strPtr("dancing queen"),
		Artist: strPtr("Abba"),
		Year:   intPtr(1990),
	})
	assert.Equal(t, domain.Points{Song: 5, Artist: 5, Year: -4, Total: 6}, p)

	p = ScoreGuess(domain.Answers{Song: strPtr("Dancing Queen")}, domain.DifficultyExtreme, domain.Guess{Year: intPtr(1976)})
	assert.Equal(t, domain.Points{}, p)
}

func TestScoreRound(t *testing.T) {
	round := domain.Round{ID: 1, CorrectYear: intPtr(1990)}
	guesses := []domain.Guess{
		{RoundID: 1, PlayerID: 1, Year: intPtr(1991)},
		{RoundID: 1, PlayerID: 2, Year: intPtr(1981)},
		{RoundID: 1, PlayerID: 3, Year: intPtr(1979)},
	}

	first := ScoreRound(round, domain.DifficultyHard, guesses)
	assert.Equal(t, 8, first[1].Year)
	assert.Equal(t, 2, first[2].Year)
	assert.Equal(t, -4, first[3].Year)
	assert.Equal(t, -4, first[3].Total)

	assert.Equal(t, first, ScoreRound(round, domain.DifficultyHard, guesses))
	assert.Empty(t, ScoreRound(round, domain.DifficultyHard, nil))
}
