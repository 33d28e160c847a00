package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalInt(t *testing.T) {
	n := ParseOptionalInt(" 1990 ")
	require.NotNil(t, n)
	assert.Equal(t, 1990, *n)

	n = ParseOptionalInt("-3")
	require.NotNil(t, n)
	assert.Equal(t, -3, *n)

	assert.Nil(t, ParseOptionalInt(""))
	assert.Nil(t, ParseOptionalInt("   "))
	assert.Nil(t, ParseOptionalInt("19x0"))
	assert.Nil(t, ParseOptionalInt("1990.5"))
}

func TestOptionalText(t *testing.T) {
	assert.Nil(t, OptionalText(" \t "))
	s := OptionalText("  Yesterday ")
	require.NotNil(t, s)
	assert.Equal(t, "Yesterday", *s)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, NormalizeText("Yesterday"), NormalizeText("  yesterday "))
	assert.Equal(t, "the beatles", NormalizeText("The \t  Beatles"))
	assert.Equal(t, NormalizeText("ÉCOLE"), NormalizeText("école"))
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" Extreme ")
	require.NoError(t, err)
	assert.Equal(t, DifficultyExtreme, d)

	_, err = ParseDifficulty("medium")
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
	assert.True(t, IsValidationError(err))
}

func TestGameState_RoundDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	s := DefaultGameState()
	assert.False(t, s.RoundDue(now))

	s.AutoRounds = true
	assert.False(t, s.RoundDue(now))

	s.NextRoundAt = &future
	assert.False(t, s.RoundDue(now))

	s.NextRoundAt = &now
	assert.True(t, s.RoundDue(now))

	s.NextRoundAt = &past
	s.Status = GameStatusEnded
	assert.False(t, s.RoundDue(now))
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsStateError(ErrNoOpenRound))
	assert.True(t, IsStateError(ErrStaleRound))
	assert.True(t, IsConflictError(ErrRoundAlreadyOpen))
	assert.True(t, IsConflictError(ErrDifficultyLocked))
	assert.True(t, IsValidationError(ErrEmptyGuess))
	assert.True(t, IsNotFoundError(ErrPlayerNotFound))
	assert.False(t, IsStateError(ErrRoundAlreadyOpen))
}

func TestGuessSubmissionYearFormats(t *testing.T) {
	var sub GuessSubmission
	require.NoError(t, json.Unmarshal([]byte(`{"round_id":1,"player_id":2,"guess_year":1984}`), &sub))
	assert.Equal(t, "1984", sub.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"round_id":1,"player_id":2,"guess_year":"19x4","guess_song":"Take On Me"}`), &sub))
	assert.Equal(t, "19x4", sub.Year)
	assert.Equal(t, "Take On Me", sub.Song)
	assert.Nil(t, ParseOptionalInt(sub.Year))

	require.NoError(t, json.Unmarshal([]byte(`{"round_id":1,"player_id":2,"guess_year":null}`), &sub))
	assert.Empty(t, sub.Year)

	assert.Error(t, json.Unmarshal([]byte(`{"round_id":1,"player_id":2,"guess_year":true}`), &sub))
}
