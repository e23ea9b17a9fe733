// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okian/streetwise/internal/adapters/repository"
	service "github.com/okian/streetwise/internal/app"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/scoregate"
	"github.com/okian/streetwise/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	SessionDependencies
	ScoreDependencies
	LeaderboardDependencies
	RankDependencies
}

// Server wires HTTP routes for the game API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	live               http.Handler

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}

	var limiter *ipLimiter
	if cfg.submitRate > 0 {
		limiter = newIPLimiter(cfg.submitRate)
	}

	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionsHandler:    NewSessionsHandler(deps, cfg.tokens, cfg.logger),
		scoresHandler:      NewScoresHandler(deps, limiter, cfg.logger),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		rankHandler:        NewRankHandler(deps),
		live:               cfg.live,
		logger:             cfg.logger,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	handle := func(method, path, endpoint string, h http.HandlerFunc) {
		r.HandleFunc(path, instrument(endpoint, h)).Methods(method)
	}

	handle(http.MethodGet, "/healthz", "healthz", s.healthHandler.HandleHealth)
	handle(http.MethodGet, "/stats", "stats", s.statsHandler.HandleStats)

	handle(http.MethodPost, "/sessions", "session_create", s.sessionsHandler.HandleCreate)
	handle(http.MethodGet, "/sessions/{id}", "session_get", s.sessionsHandler.HandleGet)
	handle(http.MethodPost, "/sessions/{id}/actions", "session_action", s.sessionsHandler.HandleAction)

	handle(http.MethodPost, "/scores", "score_submit", s.scoresHandler.HandleSubmit)

	// The live feed hijacks the connection, so it bypasses instrument. It
	// must be registered before the entry lookup.
	if s.live != nil {
		r.Handle("/leaderboard/live", s.live).Methods(http.MethodGet)
	}
	handle(http.MethodGet, "/leaderboard", "leaderboard_top", s.leaderboardHandler.HandleGetLeaderboard)
	handle(http.MethodGet, "/leaderboard/{id}", "leaderboard_entry", s.rankHandler.HandleGetRank)
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	tagFailure(w, code)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps the service error taxonomy onto status codes. Storage
// details never reach the client.
func writeFailure(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	var rl *scoregate.RateLimitError
	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("please wait before submitting again"))
		tagFailure(w, "cooldown")
	case errors.Is(err, ErrTooManyRequests):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, ErrLimitExceeded):
		writeError(w, http.StatusBadRequest, "limit_exceeded", err)
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, model.ErrVersionConflict):
		writeError(w, http.StatusConflict, "conflict", errors.New("session changed concurrently; reload and retry"))
	default:
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// actionResponse is the body of a processed action.
type actionResponse struct {
	Admissible bool            `json:"admissible"`
	Reason     string          `json:"reason,omitempty"`
	Session    *model.Session  `json:"session,omitempty"`
	Messages   []model.Message `json:"messages,omitempty"`
	Events     []model.Event   `json:"events,omitempty"`
	Ended      bool            `json:"ended,omitempty"`
}

func newActionResponse(res service.ActionResult) actionResponse {
	return actionResponse{
		Admissible: true,
		Session:    res.Session,
		Messages:   res.Messages,
		Events:     res.Events,
		Ended:      res.Ended,
	}
}
