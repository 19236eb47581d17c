// Package http serves the read-only taxonomy tree API.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/xas-miner/internal/interfaces/http/handlers"
	"github.com/turtacn/xas-miner/internal/interfaces/http/middleware"
)

// APIPrefix is where the tree routes are mounted.
const APIPrefix = "/api/v1"

// RouterConfig holds all dependencies needed to build the router.
type RouterConfig struct {
	TreeHandler   *handlers.TreeHandler
	HealthHandler *handlers.HealthHandler

	Logger logging.Logger

	// Metrics instruments every request; MetricsCollector exposes /metrics.
	// Either may be nil.
	Metrics          *prometheus.MinerMetrics
	MetricsCollector prometheus.MetricsCollector

	CORS    middleware.CORSConfig
	Logging middleware.LoggingConfig
}

// NewRouter creates the gin engine with middleware and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.CORS(cfg.CORS),
		middleware.RequestLogging(logger.Named("http"), cfg.Logging),
		middleware.Metrics(cfg.Metrics),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group(APIPrefix)
	if cfg.TreeHandler != nil {
		cfg.TreeHandler.RegisterRoutes(api)
	}

	return r
}
