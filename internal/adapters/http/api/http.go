// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/okian/riichi/internal/adapters/http/swagger"
	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/pkg/logger"
)

// Service is the set of operations the handlers call. *service.Service
// satisfies it.
type Service interface {
	Contests(ctx context.Context) ([]model.Contest, error)
	Contest(ctx context.Context, ref string) (model.Contest, error)
	Standings(ctx context.Context, ref string) iter.Seq2[model.StandingsRecord, error]
	Leaderboard(ctx context.Context, ref string) ([]model.ContestPlayerRanking, error)
	Overview(ctx context.Context, ref string) (service.Overview, error)
	PlayerGames(ctx context.Context, ref, playerID string) ([]model.GameResult, error)
	Games(ctx context.Context, query service.GamesQuery) ([]model.GameResult, error)

	SubmitGame(ctx context.Context, g model.GameResult) (string, error)
	UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error)
	UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error)

	GetStats() map[string]any
}

var _ Service = (*service.Service)(nil)

// Server wires HTTP routes for the standings API.
type Server struct {
	svc      Service
	validate *validator.Validate

	auth         *Authenticator
	writeLimiter *rate.Limiter
	corsOrigins  []string

	logger logger.Logger
}

// NewServer creates a new API server over svc.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		writeLimiter: rate.NewLimiter(rate.Limit(10), 20),
		corsOrigins:  []string{"*"},
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Get("/stats", s.handleStats)
	swagger.Register(r)

	r.Route("/contests", func(r chi.Router) {
		r.Get("/", s.handleContests)
		r.Route("/{contestID}", func(r chi.Router) {
			r.Get("/", s.handleContest)
			r.Get("/sessions", s.handleSessions)
			r.Get("/players", s.handlePlayers)
			r.Get("/overview", s.handleOverview)
			r.Get("/players/{playerID}/games", s.handlePlayerGames)
		})
	})
	r.Get("/games", s.handleGames)

	if s.auth == nil {
		s.logger.Warn(context.Background(), "no public key configured, write routes disabled")
		r.Post("/games", http.NotFound)
		r.Patch("/sessions/{sessionID}", http.NotFound)
		r.Patch("/teams/{teamID}", http.NotFound)
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(rateLimit(s.writeLimiter))

		r.Post("/games", s.handleSubmitGame)
		r.Patch("/sessions/{sessionID}", s.handlePatchSession)
		r.Patch("/teams/{teamID}", s.handlePatchTeam)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
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
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrUnresolved):
		writeError(w, http.StatusUnprocessableEntity, "unresolved", err)
	case errors.Is(err, model.ErrMalformedGame):
		writeError(w, http.StatusUnprocessableEntity, "malformed_game", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
