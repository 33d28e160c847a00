package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/hitster-live/internal/domain"
)

const adminPasswordHeader = "X-Admin-Password"

var (
	errAdminDisabled     = errors.New("admin password is not set on the server")
	errAdminUnauthorized = errors.New("wrong admin password")
)

// adminOnly gates host actions behind the shared admin password. With no
// password configured every admin request is refused.
func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.AdminPassword == "" {
			h.writeError(w, http.StatusServiceUnavailable, errAdminDisabled)
			return
		}
		given := r.Header.Get(adminPasswordHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.config.AdminPassword)) != 1 {
			h.writeError(w, http.StatusUnauthorized, errAdminUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRoundRequest struct {
	Question string `json:"question"`
}

// CreateRound opens a new round. A blank question is numbered automatically.
func (h *Handler) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req createRoundRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.service.CreateRound(r.Context(), req.Question)
	if err != nil {
		h.writeServiceError(w, "create round", err)
		return
	}
	h.writeCreated(w, round)
}

type answersRequest struct {
	Song   domain.LooseString `json:"correct_song"`
	Artist domain.LooseString `json:"correct_artist"`
	Year   domain.LooseString `json:"correct_year"`
}

// SetAnswers stores the correct answers of the open round
func (h *Handler) SetAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.service.SetAnswers(r.Context(), string(req.Song), string(req.Artist), string(req.Year))
	if err != nil {
		h.writeServiceError(w, "set answers", err)
		return
	}
	h.writeSuccess(w, round)
}

// CloseRound scores and closes the open round
func (h *Handler) CloseRound(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.CloseRound(r.Context())
	if err != nil {
		h.writeServiceError(w, "close round", err)
		return
	}
	h.writeSuccess(w, results)
}

// OpenRoundGuesses returns the live guesses of the open round
func (h *Handler) OpenRoundGuesses(w http.ResponseWriter, r *http.Request) {
	guesses, err := h.service.OpenRoundGuesses(r.Context())
	if err != nil {
		h.writeServiceError(w, "open round guesses", err)
		return
	}
	h.writeSuccess(w, guesses)
}

// EndGame ends the game, closing the open round first
func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.EndGame(r.Context())
	if err != nil {
		h.writeServiceError(w, "end game", err)
		return
	}
	h.writeSuccess(w, state)
}

// ResumeGame lets an ended game continue
func (h *Handler) ResumeGame(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ResumeGame(r.Context())
	if err != nil {
		h.writeServiceError(w, "resume game", err)
		return
	}
	h.writeSuccess(w, state)
}

// ResetGame wipes rounds and guesses but keeps players
func (h *Handler) ResetGame(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ResetGame(r.Context())
	if err != nil {
		h.writeServiceError(w, "reset game", err)
		return
	}
	h.writeSuccess(w, state)
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

func (h *Handler) SetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := h.service.SetDifficulty(r.Context(), req.Difficulty)
	if err != nil {
		h.writeServiceError(w, "set difficulty", err)
		return
	}
	h.writeSuccess(w, state)
}

type autoRoundsRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) SetAutoRounds(w http.ResponseWriter, r *http.Request) {
	var req autoRoundsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := h.service.SetAutoRounds(r.Context(), req.Enabled)
	if err != nil {
		h.writeServiceError(w, "set auto rounds", err)
		return
	}
	h.writeSuccess(w, state)
}

type armRequest struct {
	DelaySeconds *int `json:"delay_seconds"`
}

// ArmNextRound schedules the next auto round. Without a delay the configured
// default is used.
func (h *Handler) ArmNextRound(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	delay := h.config.AutoRoundDelay
	if req.DelaySeconds != nil {
		delay = time.Duration(*req.DelaySeconds) * time.Second
	}

	state, err := h.service.ArmNextRound(r.Context(), delay)
	if err != nil {
		h.writeServiceError(w, "arm next round", err)
		return
	}
	h.writeSuccess(w, state)
}
