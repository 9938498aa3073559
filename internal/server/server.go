// Package server assembles the HTTP surface: the bet feed API, the user
// profile API, the WebSocket endpoint, and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openwager/betfeed/internal/domain"
	"github.com/openwager/betfeed/internal/metrics"
	"github.com/openwager/betfeed/internal/server/handler"
	"github.com/openwager/betfeed/internal/server/middleware"
	"github.com/openwager/betfeed/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	JWTSecret       string
	PlacementLimit  int           // placements allowed per window per user
	PlacementWindow time.Duration // rate-limit window
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Bets   *handler.BetHandler
	Users  *handler.UserHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. The feed reads are
// public; every mutating /api route and the placement reads require a valid
// bearer token, and wager placement is additionally rate limited per user.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	auth := middleware.Auth(cfg.JWTSecret)
	authed := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	window := cfg.PlacementWindow
	if window <= 0 {
		window = time.Minute
	}
	placeLimit := middleware.PlacementRateLimit(limiter, cfg.PlacementLimit, window)

	// Operational endpoints, no auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Feed reads are public, like the websocket endpoint: they expose
	// nothing beyond what any client may list.
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)

	// Bet lifecycle.
	mux.Handle("POST /api/bets", authed(handlers.Bets.CreateBet))
	mux.Handle("PATCH /api/bets/{id}", authed(handlers.Bets.UpdateBet))
	mux.Handle("POST /api/bets/{id}/cancel", authed(handlers.Bets.CancelBet))
	mux.Handle("POST /api/bets/{id}/settle", authed(handlers.Bets.SettleBet))

	// Wager placement.
	mux.Handle("GET /api/bets/{id}/placement", authed(handlers.Bets.GetPlacement))
	mux.Handle("POST /api/bets/{id}/placement", auth(placeLimit(http.HandlerFunc(handlers.Bets.PlaceWager))))

	// Authenticated user.
	mux.Handle("GET /api/user/me", authed(handlers.Users.GetMe))
	mux.Handle("PATCH /api/user/me", authed(handlers.Users.UpdateMe))
	mux.Handle("GET /api/user/me/history", authed(handlers.Users.GetHistory))

	// WebSocket endpoint; events carry bet ids only, so it stays public.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
