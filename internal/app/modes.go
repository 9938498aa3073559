package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openwager/betfeed/internal/detector"
	"github.com/openwager/betfeed/internal/feed"
	"github.com/openwager/betfeed/internal/lifecycle"
	"github.com/openwager/betfeed/internal/server"
	"github.com/openwager/betfeed/internal/server/handler"
	"github.com/openwager/betfeed/internal/server/ws"
)

// APIMode serves the feed and lifecycle HTTP API plus the WebSocket bridge.
// The change detector runs elsewhere.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// DetectorMode runs only the change detector scan loop. Useful for running
// exactly one detector replica next to a fleet of API replicas.
func (a *App) DetectorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detector mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startDetector(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the change detector in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startDetector(ctx, g, deps)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// startDetector adds the detector scan loop to the errgroup.
func (a *App) startDetector(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	det := detector.New(deps.PlacementStore, deps.SignalBus, deps.Alerter, detector.Config{
		Interval:        a.cfg.Detector.Interval(),
		Overlap:         a.cfg.Detector.Overlap(),
		AlertAfterFails: a.cfg.Detector.AlertAfterFails,
	}, a.logger)

	g.Go(func() error {
		err := det.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// startServer builds the feed assembler, lifecycle manager, WebSocket hub,
// and HTTP server, and adds their goroutines to the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	assembler := feed.NewAssembler(
		deps.BetStore,
		deps.PlacementStore,
		deps.ProfileStore,
		deps.URLCache,
		a.cfg.Feed.PageSize,
		a.logger,
	)
	manager := lifecycle.NewManager(
		deps.BetStore,
		deps.PlacementStore,
		deps.SignalBus,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		JWTSecret:       a.cfg.Auth.JWTSecret,
		PlacementLimit:  a.cfg.Server.PlacementPerMin,
		PlacementWindow: time.Minute,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Pingers, a.logger),
		Bets:   handler.NewBetHandler(assembler, manager, a.logger),
		Users:  handler.NewUserHandler(deps.ProfileStore, deps.PlacementStore, deps.URLCache, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
