// Package scoring maps a round's correct answers and the game difficulty to
// per-guess points. Everything here is pure: the same inputs always produce
// the same breakdown, so a round can be re-scored safely.
package scoring

import (
	"github.com/hitster-live/internal/domain"
)

// TextPoints is awarded for an exact song or artist match
const TextPoints = 5

// yearBand is the scoring curve for one difficulty, indexed by distance band:
// d=0, d=1, d=2, 3..5, 6..10, >10.
type yearBand [6]int

var yearCurves = map[domain.Difficulty]yearBand{
	domain.DifficultyEasy:    {5, 4, 3, 2, 1, 0},
	domain.DifficultyHard:    {10, 8, 6, 4, 2, -4},
	domain.DifficultyExtreme: {10, 0, 0, 0, 0, -5},
}

func band(diff int) int {
	switch {
	case diff <= 2:
		return diff
	case diff <= 5:
		return 3
	case diff <= 10:
		return 4
	default:
		return 5
	}
}

// YearPoints scores a year guess that is diff years away from the answer.
// Unknown difficulties score 0.
func YearPoints(diff int, difficulty domain.Difficulty) int {
	if diff < 0 {
		diff = -diff
	}
	curve, ok := yearCurves[difficulty]
	if !ok {
		return 0
	}
	return curve[band(diff)]
}

// TextMatchPoints scores a song or artist guess. A missing answer scores 0.
func TextMatchPoints(guess, correct *string) int {
	if correct == nil || domain.NormalizeText(*correct) == "" || guess == nil {
		return 0
	}
	if domain.NormalizeText(*guess) == domain.NormalizeText(*correct) {
		return TextPoints
	}
	return 0
}

// ScoreGuess computes the breakdown for a single guess
func ScoreGuess(answers domain.Answers, difficulty domain.Difficulty, g domain.Guess) domain.Points {
	var p domain.Points
	if answers.Year != nil && g.Year != nil {
		p.Year = YearPoints(*g.Year-*answers.Year, difficulty)
	}
	p.Song = TextMatchPoints(g.Song, answers.Song)
	p.Artist = TextMatchPoints(g.Artist, answers.Artist)
	p.Total = p.Song + p.Artist + p.Year
	return p
}

// ScoreRound scores every guess of a round, keyed by player ID
func ScoreRound(round domain.Round, difficulty domain.Difficulty, guesses []domain.Guess) map[int64]domain.Points {
	answers := domain.Answers{
		Song:   round.CorrectSong,
		Artist: round.CorrectArtist,
		Year:   round.CorrectYear,
	}
	out := make(map[int64]domain.Points, len(guesses))
	for _, g := range guesses {
		out[g.PlayerID] = ScoreGuess(answers, difficulty, g)
	}
	return out
}
