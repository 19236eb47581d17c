package cli

import (
	"context"
	"io"

	"github.com/turtacn/xas-miner/internal/application/mining"
	"github.com/turtacn/xas-miner/internal/config"
	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	graphdb "github.com/turtacn/xas-miner/internal/infrastructure/database/neo4j"
	graphrepo "github.com/turtacn/xas-miner/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/xas-miner/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/xas-miner/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/xas-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/xas-miner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/xas-miner/internal/infrastructure/storage/minio"
	"github.com/turtacn/xas-miner/internal/interfaces/http/handlers"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// resources collects what a command opened so it can be released in
// reverse order.
type resources struct {
	closers  []io.Closer
	checkers []handlers.HealthChecker
	logger   logging.Logger
}

func newResources(logger logging.Logger) *resources {
	return &resources{logger: logger}
}

func (r *resources) add(c io.Closer) { r.closers = append(r.closers, c) }

func (r *resources) check(name string, fn func(ctx context.Context) error) {
	r.checkers = append(r.checkers, handlers.NewCheckerFunc(name, fn))
}

// Close releases every resource; failures are logged, not returned.
func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.logger.Warn("failed to release resource", logging.Err(err))
		}
	}
	r.closers = nil
}

// newBuilder creates the tuple builder over the default element registry.
func newBuilder(logger logging.Logger) *xas.Builder {
	return xas.NewBuilder(xas.NewExtractor(xas.DefaultRegistry(), logger))
}

// ─────────────────────────────────────────────────────────────────────────────
// Tree repository
// ─────────────────────────────────────────────────────────────────────────────

// openRepository connects the configured tree backend.
func openRepository(ctx context.Context, cfg *config.Config, res *resources) (taxonomy.Repository, error) {
	logger := res.logger
	switch cfg.Tree.Backend {
	case config.BackendFile:
		return taxonomy.NewFileRepository(cfg.Tree.Path), nil

	case config.BackendPostgres:
		pgCfg := postgres.PostgresConfig{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.DBName,
			Username:        cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}
		if cfg.Postgres.AutoMigrate {
			if err := migrateUp(pgCfg, logger); err != nil {
				return nil, err
			}
		}
		conn, err := postgres.NewConnection(pgCfg, logger)
		if err != nil {
			return nil, err
		}
		res.add(conn)
		res.check("postgres", conn.HealthCheck)
		return pgrepo.NewTreeRepository(conn, pgrepo.DefaultKeepSnapshots, logger), nil

	case config.BackendNeo4j:
		drv, err := graphdb.NewDriver(graphdb.Neo4jConfig{
			URI:                   cfg.Neo4j.URI,
			Username:              cfg.Neo4j.User,
			Password:              cfg.Neo4j.Password,
			Database:              cfg.Neo4j.Database,
			MaxConnectionPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
			ConnectionTimeout:     cfg.Neo4j.ConnectionTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		res.add(drv)
		res.check("neo4j", drv.HealthCheck)
		repo := graphrepo.NewTreeRepository(drv, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.BackendMinIO:
		client, err := minio.NewMinIOClient(&minio.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			ObjectKey: cfg.MinIO.ObjectKey,
			UseSSL:    cfg.MinIO.UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		res.add(client)
		res.check("minio", client.HealthCheck)
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return minio.NewTreeRepository(client, logger), nil
	}
	return nil, errors.New(errors.ErrCodeTreeBackendUnknown, "unknown tree backend").WithDetail(cfg.Tree.Backend)
}

func migrateUp(cfg postgres.PostgresConfig, logger logging.Logger) error {
	m, err := postgres.NewMigrator(cfg, logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to prepare migrations")
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("failed to close migrator", logging.Err(cerr))
		}
	}()
	return m.Up()
}

// ─────────────────────────────────────────────────────────────────────────────
// Article source and tuple publisher
// ─────────────────────────────────────────────────────────────────────────────

// openSource returns the configured article source.  Directory arguments
// on the command line replace the configured directories.  A rewinding
// Kafka source reads the whole articles topic and leaves the committed
// offsets of kafka.group_id alone.
func openSource(cfg *config.Config, dirs []string, rewind bool, res *resources) (corpus.Source, error) {
	if len(dirs) == 0 && cfg.Corpus.Source == config.SourceKafka {
		consumer, err := kafka.NewArticleConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			Topic:       cfg.Kafka.ArticlesTopic,
			IdleTimeout: cfg.Kafka.IdleTimeout,
			Rewind:      rewind,
		}, res.logger)
		if err != nil {
			return nil, err
		}
		res.add(consumer)
		return consumer, nil
	}

	if len(dirs) == 0 {
		dirs = cfg.Corpus.Dirs
	}
	if len(dirs) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, "no corpus directories given")
	}
	return corpus.NewDirSource(corpus.DirSourceConfig{
		Dirs:           dirs,
		RequireSibling: cfg.Corpus.RequireSourceSibling,
		SiblingExts:    cfg.Corpus.SiblingExts,
	}, res.logger), nil
}

// openPublisher creates the tuple producer when publishing is enabled,
// creating the topics first.
func openPublisher(ctx context.Context, cfg *config.Config, res *resources) (mining.Publisher, error) {
	if !cfg.Kafka.Publish {
		return nil, nil
	}

	topics, err := kafka.NewTopicManager(cfg.Kafka.Brokers, res.logger)
	if err != nil {
		return nil, err
	}
	err = topics.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.ArticlesTopic, cfg.Kafka.TuplesTopic)...)
	if cerr := topics.Close(); cerr != nil {
		res.logger.Warn("failed to close topic manager", logging.Err(cerr))
	}
	if err != nil {
		return nil, err
	}

	pub, err := kafka.NewTuplePublisher(kafka.ProducerConfig{
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.TuplesTopic,
		BatchSize: cfg.Kafka.BatchSize,
	}, res.logger)
	if err != nil {
		return nil, err
	}
	res.add(pub)
	return pub, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tuple cache
// ─────────────────────────────────────────────────────────────────────────────

// openCache builds the extraction cache: in-process only, or layered over
// Redis when an address is configured.
func openCache(cfg *config.Config, metrics *prometheus.MinerMetrics, res *resources) (redis.TupleCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	l1 := redis.NewMemoryTupleCache(cfg.Cache.MemoryTTL, metrics)
	if cfg.Cache.Redis.Addr == "" {
		return l1, nil
	}

	client, err := redis.NewClient(&redis.RedisConfig{
		Addr:        cfg.Cache.Redis.Addr,
		Password:    cfg.Cache.Redis.Password,
		DB:          cfg.Cache.Redis.DB,
		PoolSize:    cfg.Cache.Redis.PoolSize,
		DialTimeout: cfg.Cache.Redis.DialTimeout,
	}, res.logger)
	if err != nil {
		return nil, err
	}
	res.add(client)
	res.check("redis", client.Ping)

	l2 := redis.NewTupleCache(client, res.logger,
		redis.WithPrefix(cfg.Cache.Redis.KeyPrefix),
		redis.WithTTL(cfg.Cache.Redis.TTL),
		redis.WithRecorder(metrics),
	)
	return redis.NewLayeredTupleCache(l1, l2), nil
}

// openMetrics creates the collector and miner metrics.  A disabled
// collector still yields usable no-op metrics.
func openMetrics(cfg *config.Config, logger logging.Logger) (prometheus.MetricsCollector, *prometheus.MinerMetrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, prometheus.NewMinerMetrics(nil), nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return collector, prometheus.NewMinerMetrics(collector), nil
}
