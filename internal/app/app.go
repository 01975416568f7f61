package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"stratum/internal/config"
	"stratum/internal/dashboard"
	"stratum/internal/feed"
	"stratum/internal/kvstore"
	"stratum/internal/render"
	"stratum/internal/trend"
	"stratum/internal/viewserver"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (kvstore.Store, func(), error) {
	store, closer, err := kvstore.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.Config.Storage.Driver, err)
	}
	a.Logger.Debug().Str("driver", a.Config.Storage.Driver).Msg("key-value store opened")
	return store, closer, nil
}

func (a *App) newFeed() (feed.PriceFeed, error) {
	return feed.New(a.Config.Feed, a.Logger)
}

func (a *App) newDashboard(f feed.PriceFeed, store kvstore.Store) *dashboard.Dashboard {
	trends := trend.New(store, a.Config.Trend.Capacity, a.Logger)
	return dashboard.New(f, trends, dashboard.OptionsFromConfig(a.Config), a.Logger)
}

func (a *App) warnPolling() {
	if a.Config.AggressivePolling() {
		a.Logger.Warn().Dur("interval", a.Config.Scheduler.Interval).Msg("polling faster than 500ms risks upstream rate limiting")
	}
}

// Run executes the long-running dashboard: card polling plus the optional view server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := a.newFeed()
	if err != nil {
		return err
	}
	a.warnPolling()

	dash := a.newDashboard(f, store)
	a.Logger.Info().Str("feed", a.Config.Feed.Driver).Msg("starting dashboard")
	dash.Start(ctx)
	defer dash.Stop()

	if a.Config.Server.Listen == "" {
		a.Logger.Info().Msg("server.listen not configured; polling only")
		<-ctx.Done()
		a.Logger.Info().Msg("dashboard stopped")
		return nil
	}

	srv := viewserver.New(dash, render.NewSparklineRenderer(a.Config.Sparkline), a.Config.Server.IconsDir, a.Logger)
	err = srv.ListenAndServe(ctx, a.Config.Server.Listen)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("view server terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Query string
}

// ChartOptions configure a live chart capture.
type ChartOptions struct {
	ID      string
	Ticks   int
	PNGPath string
	Size    render.Size
}

// SimulateOptions configure an offline chart built from given prices.
type SimulateOptions struct {
	ID      string
	Prices  []string
	PNGPath string
	Size    render.Size
}

// ExportOptions configure exporting a stored trend.
type ExportOptions struct {
	ID      string
	SVGPath string
	PNGPath string
	CSVPath string
}
