package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitster-live/internal/domain"
)

type mapCache struct {
	mu   sync.Mutex
	rows map[int64][]domain.Standing
	hits int
}

func (c *mapCache) Get(_ context.Context, version int64) ([]domain.Standing, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.rows[version]
	if ok {
		c.hits++
	}
	return rows, ok, nil
}

func (c *mapCache) Set(_ context.Context, version int64, rows []domain.Standing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[version] = rows
	return nil
}

func (s *GameServiceSuite) playRound(answers [3]string, guesses map[int64][3]string) {
	r, err := s.service.CreateRound(s.ctx, "")
	s.Require().NoError(err)
	for playerID, g := range guesses {
		s.guess(r.ID, playerID, g[0], g[1], g[2])
	}
	_, err = s.service.SetAnswers(s.ctx, answers[0], answers[1], answers[2])
	s.Require().NoError(err)
	_, err = s.service.CloseRound(s.ctx)
	s.Require().NoError(err)
}

func ranks(rows []domain.Standing) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.PlayerName] = r.Rank
	}
	return out
}

func (s *GameServiceSuite) TestStandingsBeforeAnyRound() {
	s.register("Ana")
	s.register("ben")

	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("Ana", rows[0].PlayerName)
	s.Equal(1, rows[0].Rank)
	s.Equal(1, rows[1].Rank)
	s.Zero(rows[1].Points)

	deltas, err := s.service.RankDeltas(s.ctx)
	s.Require().NoError(err)
	s.Empty(deltas)
}

func (s *GameServiceSuite) TestStandingsDenseRanking() {
	s.setDifficulty("hard")
	a, b, c := s.register("Ana"), s.register("Ben"), s.register("Cleo")

	// 10, 10, 7
	s.playRound([3]string{"Song", "", "1990"}, map[int64][3]string{
		a.ID: {"", "", "1990"},
		b.ID: {"", "", "1990"},
		c.ID: {"song", "", "1982"},
	})

	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Ana", "Ben", "Cleo"}, []string{rows[0].PlayerName, rows[1].PlayerName, rows[2].PlayerName})
	s.Equal(map[string]int{"Ana": 1, "Ben": 1, "Cleo": 2}, ranks(rows))

	// Cleo catches up: 12, 12, 12
	s.playRound([3]string{"Hit", "", "2000"}, map[int64][3]string{
		a.ID: {"", "", "1992"},
		b.ID: {"", "", "2008"},
		c.ID: {"hit", "", ""},
	})

	rows, err = s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]int{"Ana": 1, "Ben": 1, "Cleo": 1}, ranks(rows))
	for _, r := range rows {
		s.Equal(12, r.Points)
	}
}

func (s *GameServiceSuite) TestStandingsNegativeTotalsKept() {
	s.setDifficulty("extreme")
	a := s.register("Ana")

	s.playRound([3]string{"", "", "1990"}, map[int64][3]string{a.ID: {"", "", "1970"}})

	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(-5, rows[0].Points)
}

func (s *GameServiceSuite) TestRankDeltaMovesDown() {
	a, b := s.register("Ana"), s.register("Ben")

	s.playRound([3]string{"", "", "1990"}, map[int64][3]string{a.ID: {"", "", "1990"}})
	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]int{"Ana": 1, "Ben": 2}, ranks(rows))
	for _, r := range rows {
		s.Zero(r.Delta)
	}

	s.playRound([3]string{"X", "Y", "1990"}, map[int64][3]string{b.ID: {"x", "y", "1990"}})
	rows, err = s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]int{"Ben": 1, "Ana": 2}, ranks(rows))

	deltas := map[string]int{}
	for _, r := range rows {
		deltas[r.PlayerName] = r.Delta
	}
	s.Equal(map[string]int{"Ana": -1, "Ben": 1}, deltas)
}

func (s *GameServiceSuite) TestNewPlayerHasZeroDelta() {
	a := s.register("Ana")
	s.playRound([3]string{"", "", "1990"}, map[int64][3]string{a.ID: {"", "", "1990"}})
	s.playRound([3]string{"", "", "1990"}, map[int64][3]string{a.ID: {"", "", "1990"}})

	late := s.register("Zed")
	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	for _, r := range rows {
		if r.PlayerID == late.ID {
			s.Zero(r.Delta)
			s.Equal(2, r.Rank)
		}
	}
}

func (s *GameServiceSuite) TestStandingsCacheKeyedByVersion() {
	a := s.register("Ana")
	cache := &mapCache{rows: map[int64][]domain.Standing{}}
	s.service.SetCache(cache)

	_, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, cache.hits)

	s.playRound([3]string{"", "", "1990"}, map[int64][3]string{a.ID: {"", "", "1990"}})

	rows, err := s.service.GetStandings(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, rows[0].Points)
}

// Auto-round scheduler

func (s *GameServiceSuite) TestArmNextRoundIsNoopWhenDisabled() {
	state, err := s.service.ArmNextRound(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.Nil(state.NextRoundAt)

	_, err = s.service.ArmNextRound(s.ctx, -time.Second)
	s.ErrorIs(err, domain.ErrInvalidDelay)
}

func (s *GameServiceSuite) TestAutoRoundOpensWhenDue() {
	_, err := s.service.SetAutoRounds(s.ctx, true)
	s.Require().NoError(err)
	_, err = s.service.CreateRound(s.ctx, "Q1")
	s.Require().NoError(err)

	_, err = s.service.CloseRound(s.ctx)
	s.Require().NoError(err)

	open, err := s.service.GetOpenRound(s.ctx)
	s.Require().NoError(err)
	s.Nil(open)

	s.clock.Advance(30 * time.Second)

	open, err = s.service.GetOpenRound(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(open)
	s.Equal("Round 2", open.Question)

	view, err := s.service.GetState(s.ctx, nil)
	s.Require().NoError(err)
	s.Nil(view.NextRoundAt)
}

func (s *GameServiceSuite) TestAutoRoundNotOpenedWhenEnded() {
	_, err := s.service.SetAutoRounds(s.ctx, true)
	s.Require().NoError(err)
	_, err = s.service.ArmNextRound(s.ctx, 0)
	s.Require().NoError(err)
	_, err = s.service.EndGame(s.ctx)
	s.Require().NoError(err)

	s.Nil(s.service.OpenDueRound(s.ctx))
}

func (s *GameServiceSuite) TestDisablingAutoRoundsDropsArmedRound() {
	_, err := s.service.SetAutoRounds(s.ctx, true)
	s.Require().NoError(err)
	state, err := s.service.ArmNextRound(s.ctx, time.Second)
	s.Require().NoError(err)
	s.NotNil(state.NextRoundAt)

	state, err = s.service.SetAutoRounds(s.ctx, false)
	s.Require().NoError(err)
	s.Nil(state.NextRoundAt)

	s.clock.Advance(time.Minute)
	s.Nil(s.service.OpenDueRound(s.ctx))
}

func (s *GameServiceSuite) TestConcurrentAutoOpenCreatesOneRound() {
	_, err := s.service.SetAutoRounds(s.ctx, true)
	s.Require().NoError(err)
	_, err = s.service.ArmNextRound(s.ctx, 10*time.Second)
	s.Require().NoError(err)
	s.clock.Advance(10 * time.Second)

	const readers = 16
	var wg sync.WaitGroup
	var seen sync.Map
	var failures atomic.Int32
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			open, err := s.service.GetOpenRound(s.ctx)
			if err != nil || open == nil {
				failures.Add(1)
				return
			}
			seen.Store(open.ID, true)
		}()
	}
	wg.Wait()

	s.Zero(failures.Load())
	count := 0
	seen.Range(func(_, _ any) bool {
		count++
		return true
	})
	s.Equal(1, count)
	s.Len(s.notifier.opened, 1)
}
