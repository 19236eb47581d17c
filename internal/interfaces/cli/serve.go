package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/xas-miner/internal/config"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	xashttp "github.com/turtacn/xas-miner/internal/interfaces/http"
	"github.com/turtacn/xas-miner/internal/interfaces/http/handlers"
	"github.com/turtacn/xas-miner/internal/interfaces/http/middleware"
)

// NewServeCmd serves the persisted tree over HTTP until interrupted.
func NewServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the persisted taxonomy tree read-only over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := *cliCtx.Config
			if port > 0 {
				cfg.Server.Port = port
			}

			logger, err := logging.NewLogger(logging.LogConfig{
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
				OutputPaths: cfg.Log.OutputPaths,
			})
			if err != nil {
				return err
			}
			logging.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &cfg, cliCtx.ConfigPath, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.port)")
	return cmd
}

// serve blocks until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg *config.Config, configPath string, logger logging.Logger) error {
	gin.SetMode(cfg.Server.Mode)

	res := newResources(logger)
	defer res.Close()

	collector, metrics, err := openMetrics(cfg, logger)
	if err != nil {
		return err
	}
	repo, err := openRepository(ctx, cfg, res)
	if err != nil {
		return err
	}

	store := handlers.NewTreeStore(repo, logger)
	if err := store.Reload(ctx); err != nil {
		logger.Warn("serving without a tree until the next reload", logging.Err(err))
	}

	if configPath != "" {
		config.Watch(configPath, func(*config.Config) {
			logger.Info("configuration changed, reloading tree")
			store.Reload(ctx)
		}, func(err error) {
			logger.Error("ignoring invalid configuration change", logging.Err(err))
		})
	}

	if every := cfg.Server.TreeReloadInterval; every > 0 {
		go reloadEvery(ctx, store, every)
	}

	checkers := append([]handlers.HealthChecker{store}, res.checkers...)
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.AllowedOrigins

	router := xashttp.NewRouter(xashttp.RouterConfig{
		TreeHandler:      handlers.NewTreeHandler(store),
		HealthHandler:    handlers.NewHealthHandler(Version, checkers...),
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		CORS:             cors,
		Logging:          middleware.DefaultLoggingConfig(),
	})
	srv := xashttp.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

// reloadEvery reloads the served tree on every tick until ctx ends, so trees
// persisted by later tree runs are served without a restart.  Reload logs
// its own failures and keeps the previous tree.
func reloadEvery(ctx context.Context, store *handlers.TreeStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Reload(ctx)
		}
	}
}
