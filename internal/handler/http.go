package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hitster-live/internal/config"
	"github.com/hitster-live/internal/domain"
	"github.com/hitster-live/internal/service"
	"github.com/hitster-live/internal/websocket"
)

const playerIDHeader = "X-Player-ID"

// Handler provides HTTP handlers for the game API
type Handler struct {
	service *service.GameService
	hub     *websocket.Hub
	config  *config.GameConfig
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.GameService, hub *websocket.Hub, cfg *config.GameConfig, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		config:  cfg,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(noStore)

		r.Post("/players", h.RegisterPlayer)
		r.Get("/players", h.ListPlayers)
		r.Get("/players/{playerID}", h.GetPlayer)

		r.Get("/state", h.GetState)
		r.Get("/standings", h.GetStandings)

		r.Route("/rounds", func(r chi.Router) {
			r.Get("/open", h.GetOpenRound)
			r.Get("/last", h.GetLastRound)
			r.Post("/{roundID}/guesses", h.SubmitGuess)
			r.Get("/{roundID}/guesses/me", h.GetMyGuess)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.adminOnly)

			r.Post("/rounds", h.CreateRound)
			r.Put("/rounds/open/answers", h.SetAnswers)
			r.Post("/rounds/open/close", h.CloseRound)
			r.Get("/rounds/open/guesses", h.OpenRoundGuesses)

			r.Post("/game/end", h.EndGame)
			r.Post("/game/resume", h.ResumeGame)
			r.Post("/game/reset", h.ResetGame)

			r.Put("/difficulty", h.SetDifficulty)
			r.Put("/auto-rounds", h.SetAutoRounds)
			r.Post("/auto-rounds/arm", h.ArmNextRound)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID, X-Player-ID, X-Admin-Password")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// noStore keeps polling clients from seeing cached game state
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to a status code. Unexpected errors
// are logged and hidden from the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsStateError(err), domain.IsConflictError(err):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decode reads a JSON request body. An empty body decodes to the zero value.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRequest
	}
	return id, nil
}

// playerID reads the optional player identity header
func playerID(r *http.Request) (*int64, error) {
	raw := r.Header.Get(playerIDHeader)
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

var errPlayerRequired = errors.New("X-Player-ID header is required")

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"subscribers": map[string]int{
			websocket.TopicRounds:    h.hub.GetSubscriberCount(websocket.TopicRounds),
			websocket.TopicStandings: h.hub.GetSubscriberCount(websocket.TopicStandings),
			websocket.TopicGuesses:   h.hub.GetSubscriberCount(websocket.TopicGuesses),
		},
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once the store answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("store not ready", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, errors.New("store unavailable"))
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

type registerRequest struct {
	Name string `json:"name"`
}

// RegisterPlayer joins a player by name. Joining again with the same name in
// any case returns the existing player.
func (h *Handler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	player, created, err := h.service.RegisterPlayer(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, "register player", err)
		return
	}
	if created {
		h.writeCreated(w, player)
		return
	}
	h.writeSuccess(w, player)
}

// ListPlayers returns all players ordered by name
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.ListPlayers(r.Context())
	if err != nil {
		h.writeServiceError(w, "list players", err)
		return
	}
	h.writeSuccess(w, players)
}

// GetPlayer returns a player by ID
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	player, err := h.service.GetPlayer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get player", err)
		return
	}
	h.writeSuccess(w, player)
}

// GetState returns the polling snapshot of the game
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	pid, err := playerID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := h.service.GetState(r.Context(), pid)
	if err != nil {
		h.writeServiceError(w, "get state", err)
		return
	}
	h.writeSuccess(w, view)
}

// GetStandings returns the ranked scoreboard
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.service.GetStandings(r.Context())
	if err != nil {
		h.writeServiceError(w, "get standings", err)
		return
	}
	h.writeSuccess(w, standings)
}

// GetOpenRound returns the open round without its answers, or null
func (h *Handler) GetOpenRound(w http.ResponseWriter, r *http.Request) {
	pid, err := playerID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	round, err := h.service.GetOpenRound(r.Context())
	if err != nil {
		h.writeServiceError(w, "get open round", err)
		return
	}
	if round == nil {
		h.writeJSON(w, http.StatusOK, APIResponse{Success: true})
		return
	}

	view := service.OpenRoundView{ID: round.ID, Question: round.Question}
	if pid != nil {
		guess, err := h.service.GetMyGuess(r.Context(), round.ID, *pid)
		if err != nil {
			h.writeServiceError(w, "get open round", err)
			return
		}
		view.Submitted = guess != nil
	}
	h.writeSuccess(w, view)
}

// GetLastRound returns the results of the most recently closed round, or null
func (h *Handler) GetLastRound(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GetLastClosedRoundResults(r.Context())
	if err != nil {
		h.writeServiceError(w, "get last round", err)
		return
	}
	if results == nil {
		h.writeJSON(w, http.StatusOK, APIResponse{Success: true})
		return
	}
	h.writeSuccess(w, results)
}

// SubmitGuess records or replaces the caller's guess for a round
func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseID(chi.URLParam(r, "roundID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	pid, err := playerID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if pid == nil {
		h.writeError(w, http.StatusUnauthorized, errPlayerRequired)
		return
	}

	var sub domain.GuessSubmission
	if err := decode(r, &sub); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	sub.RoundID = roundID
	sub.PlayerID = *pid

	guess, err := h.service.SubmitGuess(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, "submit guess", err)
		return
	}
	h.writeSuccess(w, guess)
}

// GetMyGuess returns the caller's guess for a round, or null
func (h *Handler) GetMyGuess(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseID(chi.URLParam(r, "roundID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	pid, err := playerID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if pid == nil {
		h.writeError(w, http.StatusUnauthorized, errPlayerRequired)
		return
	}

	guess, err := h.service.GetMyGuess(r.Context(), roundID, *pid)
	if err != nil {
		h.writeServiceError(w, "get my guess", err)
		return
	}
	if guess == nil {
		h.writeJSON(w, http.StatusOK, APIResponse{Success: true})
		return
	}
	h.writeSuccess(w, guess)
}
