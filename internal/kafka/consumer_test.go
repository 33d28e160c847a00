package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls []domain.GuessSubmission
	errs  []error
}

func (f *fakeHandler) SubmitGuess(_ context.Context, sub domain.GuessSubmission) (domain.Guess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sub)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.Guess{}, err
		}
	}
	return domain.Guess{RoundID: sub.RoundID, PlayerID: sub.PlayerID}, nil
}

func testKafkaConfig() *config.KafkaConfig {
	return &config.KafkaConfig{
		BatchSize:     10,
		BatchTimeout:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeSubmission(t *testing.T) {
	sub, err := decodeSubmission([]byte(`{"round_id":3,"player_id":7,"guess_song":"Hey Jude","guess_year":1968}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sub.RoundID)
	assert.Equal(t, int64(7), sub.PlayerID)
	assert.Equal(t, "Hey Jude", sub.Song)
	assert.Equal(t, "1968", sub.Year)

	sub, err = decodeSubmission([]byte(`{"round_id":3,"player_id":7,"guess_year":"1968"}`))
	require.NoError(t, err)
	assert.Equal(t, "1968", sub.Year)

	sub, err = decodeSubmission([]byte(`{"round_id":3,"player_id":7,"guess_artist":"Queen"}`))
	require.NoError(t, err)
	assert.Empty(t, sub.Year)
	assert.Equal(t, "Queen", sub.Artist)
}

func TestDecodeSubmissionRejectsBadMessages(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       `{round_id`,
		"missing round":  `{"player_id":7,"guess_song":"x"}`,
		"missing player": `{"round_id":3,"guess_song":"x"}`,
		"negative ids":   `{"round_id":-1,"player_id":-2}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSubmission([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestProcessSubmissions(t *testing.T) {
	handler := &fakeHandler{errs: []error{nil, domain.ErrStaleRound, nil}}
	batch := []domain.GuessSubmission{
		{RoundID: 1, PlayerID: 1, Song: "a"},
		{RoundID: 1, PlayerID: 2, Song: "b"},
		{RoundID: 1, PlayerID: 3, Song: "c"},
	}

	accepted := processSubmissions(context.Background(), handler, batch, testKafkaConfig(), discardLogger())

	assert.Equal(t, 2, accepted)
	// Rejections are not retried.
	assert.Len(t, handler.calls, 3)
}

func TestProcessSubmissionsRetriesTransientErrors(t *testing.T) {
	transient := errors.New("connection reset")
	handler := &fakeHandler{errs: []error{transient, transient, nil}}

	accepted := processSubmissions(context.Background(), handler,
		[]domain.GuessSubmission{{RoundID: 1, PlayerID: 1, Year: "1999"}},
		testKafkaConfig(), discardLogger())

	assert.Equal(t, 1, accepted)
	assert.Len(t, handler.calls, 3)
}

func TestProcessSubmissionsGivesUp(t *testing.T) {
	transient := errors.New("connection reset")
	handler := &fakeHandler{errs: []error{transient, transient, transient, transient}}

	accepted := processSubmissions(context.Background(), handler,
		[]domain.GuessSubmission{{RoundID: 1, PlayerID: 1, Year: "1999"}},
		testKafkaConfig(), discardLogger())

	assert.Equal(t, 0, accepted)
	assert.Len(t, handler.calls, 3)
}

func TestProcessSubmissionsZeroRetryAttempts(t *testing.T) {
	handler := &fakeHandler{}
	cfg := testKafkaConfig()
	cfg.RetryAttempts = 0

	accepted := processSubmissions(context.Background(), handler,
		[]domain.GuessSubmission{{RoundID: 1, PlayerID: 1, Song: "x"}}, cfg, discardLogger())

	assert.Equal(t, 1, accepted)
	assert.Len(t, handler.calls, 1)
}
