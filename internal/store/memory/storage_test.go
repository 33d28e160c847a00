package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/store"
)

type StorageSuite struct {
	suite.Suite
	ctx   context.Context
	store *Storage
	now   time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.now = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) tx(fn func(tx store.Tx) error) error {
	return s.store.WithTx(s.ctx, fn)
}

func (s *StorageSuite) TestRollbackOnError() {
	boom := errors.New("boom")
	err := s.tx(func(tx store.Tx) error {
		if _, err := tx.InsertPlayer(s.ctx, "Ana", s.now); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	s.NoError(s.tx(func(tx store.Tx) error {
		players, err := tx.ListPlayers(s.ctx)
		s.NoError(err)
		s.Empty(players)
		return nil
	}))
}

func (s *StorageSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.WithTx(ctx, func(tx store.Tx) error { return nil })
	s.ErrorIs(err, context.Canceled)
}

func (s *StorageSuite) TestSaveGameStateBumpsVersion() {
	s.NoError(s.tx(func(tx store.Tx) error {
		st, err := tx.LockGameState(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(0), st.Version)
		st.Difficulty = domain.DifficultyHard
		return tx.SaveGameState(s.ctx, st)
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		st, err := tx.GameState(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(1), st.Version)
		s.Equal(domain.DifficultyHard, st.Difficulty)
		return nil
	}))
}

func (s *StorageSuite) TestSingleOpenRound() {
	s.NoError(s.tx(func(tx store.Tx) error {
		_, err := tx.InsertRound(s.ctx, "Round 1", s.now)
		return err
	}))

	err := s.tx(func(tx store.Tx) error {
		_, err := tx.InsertRound(s.ctx, "Round 2", s.now)
		return err
	})
	s.ErrorIs(err, domain.ErrRoundAlreadyOpen)

	s.NoError(s.tx(func(tx store.Tx) error {
		open, err := tx.OpenRound(s.ctx)
		s.Require().NoError(err)
		s.Require().NotNil(open)
		s.NoError(tx.CloseRound(s.ctx, open.ID, s.now))
		_, err = tx.InsertRound(s.ctx, "Round 2", s.now)
		return err
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		n, err := tx.CountRounds(s.ctx)
		s.NoError(err)
		s.Equal(2, n)
		closed, err := tx.LastClosedRounds(s.ctx, 2)
		s.NoError(err)
		s.Len(closed, 1)
		s.Equal("Round 1", closed[0].Question)
		return nil
	}))
}

func (s *StorageSuite) TestPlayerNamesCaseInsensitive() {
	s.NoError(s.tx(func(tx store.Tx) error {
		_, err := tx.InsertPlayer(s.ctx, "Ana", s.now)
		return err
	}))

	err := s.tx(func(tx store.Tx) error {
		_, err := tx.InsertPlayer(s.ctx, "ANA", s.now)
		return err
	})
	s.ErrorIs(err, domain.ErrPlayerNameTaken)

	s.NoError(s.tx(func(tx store.Tx) error {
		p, err := tx.FindPlayerByName(s.ctx, "ana")
		s.NoError(err)
		s.Require().NotNil(p)
		s.Equal("Ana", p.Name)

		_, err = tx.GetPlayer(s.ctx, 99)
		s.ErrorIs(err, domain.ErrPlayerNotFound)
		return nil
	}))
}

func (s *StorageSuite) TestUpsertGuessKeepsOneRow() {
	var roundID, playerID int64
	s.NoError(s.tx(func(tx store.Tx) error {
		p, err := tx.InsertPlayer(s.ctx, "Ana", s.now)
		s.Require().NoError(err)
		r, err := tx.InsertRound(s.ctx, "Round 1", s.now)
		s.Require().NoError(err)
		roundID, playerID = r.ID, p.ID

		song := "Dancing Queen"
		return tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r.ID, PlayerID: p.ID, Song: &song, CreatedAt: s.now, UpdatedAt: s.now})
	}))

	later := s.now.Add(time.Minute)
	year := 1976
	s.NoError(s.tx(func(tx store.Tx) error {
		return tx.UpsertGuess(s.ctx, domain.Guess{RoundID: roundID, PlayerID: playerID, Year: &year, CreatedAt: later, UpdatedAt: later})
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		guesses, err := tx.ListGuesses(s.ctx, roundID)
		s.Require().NoError(err)
		s.Require().Len(guesses, 1)
		g := guesses[0]
		s.Nil(g.Song)
		s.Equal(1976, *g.Year)
		s.Equal(s.now, g.CreatedAt)
		s.Equal(later, g.UpdatedAt)
		return nil
	}))
}

func (s *StorageSuite) TestPlayerTotalsCountClosedRoundsOnly() {
	s.NoError(s.tx(func(tx store.Tx) error {
		ana, _ := tx.InsertPlayer(s.ctx, "Ana", s.now)
		ben, _ := tx.InsertPlayer(s.ctx, "Ben", s.now)
		_, _ = tx.InsertPlayer(s.ctx, "Cleo", s.now)

		r1, _ := tx.InsertRound(s.ctx, "Round 1", s.now)
		s.NoError(tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r1.ID, PlayerID: ana.ID}))
		s.NoError(tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r1.ID, PlayerID: ben.ID}))
		s.NoError(tx.UpdateGuessPoints(s.ctx, r1.ID, map[int64]domain.Points{
			ana.ID: {Song: 5, Total: 5},
			ben.ID: {Year: 10, Total: 10},
		}, s.now))
		s.NoError(tx.CloseRound(s.ctx, r1.ID, s.now))

		r2, _ := tx.InsertRound(s.ctx, "Round 2", s.now)
		s.NoError(tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r2.ID, PlayerID: ana.ID}))
		return tx.UpdateGuessPoints(s.ctx, r2.ID, map[int64]domain.Points{ana.ID: {Total: 100}}, s.now)
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		totals, err := tx.PlayerTotals(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(totals, 3)
		got := map[string]int{}
		for _, t := range totals {
			got[t.PlayerName] = t.Points
		}
		s.Equal(map[string]int{"Ana": 5, "Ben": 10, "Cleo": 0}, got)
		return nil
	}))
}

func (s *StorageSuite) TestRoundGuessOrdering() {
	var roundID int64
	s.NoError(s.tx(func(tx store.Tx) error {
		zed, _ := tx.InsertPlayer(s.ctx, "zed", s.now)
		amy, _ := tx.InsertPlayer(s.ctx, "Amy", s.now)
		r, _ := tx.InsertRound(s.ctx, "Round 1", s.now)
		roundID = r.ID
		s.NoError(tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r.ID, PlayerID: amy.ID, UpdatedAt: s.now}))
		return tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r.ID, PlayerID: zed.ID, UpdatedAt: s.now.Add(time.Second)})
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		byName, err := tx.RoundGuesses(s.ctx, roundID)
		s.Require().NoError(err)
		s.Equal("Amy", byName[0].PlayerName)
		s.Equal("zed", byName[1].PlayerName)

		recent, err := tx.RecentRoundGuesses(s.ctx, roundID)
		s.Require().NoError(err)
		s.Equal("zed", recent[0].PlayerName)
		s.Equal("Amy", recent[1].PlayerName)
		return nil
	}))
}

func (s *StorageSuite) TestDeleteGameDataKeepsPlayers() {
	s.NoError(s.tx(func(tx store.Tx) error {
		p, _ := tx.InsertPlayer(s.ctx, "Ana", s.now)
		r, _ := tx.InsertRound(s.ctx, "Round 1", s.now)
		s.NoError(tx.UpsertGuess(s.ctx, domain.Guess{RoundID: r.ID, PlayerID: p.ID}))
		s.NoError(tx.SaveSnapshots(s.ctx, []domain.StandingsSnapshot{{RoundID: r.ID, PlayerID: p.ID, Rank: 1}}, s.now))
		return tx.DeleteGameData(s.ctx)
	}))

	s.NoError(s.tx(func(tx store.Tx) error {
		n, _ := tx.CountRounds(s.ctx)
		s.Zero(n)
		ranks, _ := tx.SnapshotRanks(s.ctx, 1)
		s.Empty(ranks)
		players, _ := tx.ListPlayers(s.ctx)
		s.Len(players, 1)
		return nil
	}))
}
