package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultTreeReloadInterval    = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultCorpusWorkers = 4
	DefaultCorpusScope   = "captions"
	DefaultCorpusSource  = SourceDir

	DefaultTreeBackend = BackendFile
	DefaultTreePath    = "data/xas_tree.json"

	DefaultCacheMemoryTTL = 10 * time.Minute
	DefaultRedisTTL       = 24 * time.Hour
	DefaultRedisKeyPrefix = "xasminer:"
	DefaultRedisPoolSize  = 10

	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresDBName   = "xasminer"
	DefaultPostgresMaxConns = 10

	DefaultNeo4jDatabase = "neo4j"

	DefaultMinIOBucket    = "xas-miner"
	DefaultMinIOObjectKey = "trees/xas_tree.json"

	DefaultKafkaGroupID       = "xasminer"
	DefaultKafkaArticlesTopic = "xas.articles"
	DefaultKafkaTuplesTopic   = "xas.tuples"
	DefaultKafkaIdleTimeout   = 10 * time.Second
	DefaultKafkaBatchSize     = 100

	DefaultMetricsNamespace = "xasminer"
)

// DefaultSiblingExts are the original-article extensions looked for next to
// a generated JSON record.
var DefaultSiblingExts = []string{".xml", ".nxml", ".html"}

// viperDefaults seeds viper so that every key is known before unmarshalling;
// AutomaticEnv only overrides keys viper has seen.  Booleans whose default is
// true live here because ApplyDefaults cannot tell false from unset.
func viperDefaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":                     DefaultLogLevel,
		"log.format":                    DefaultLogFormat,
		"corpus.dirs":                   []string{},
		"corpus.require_source_sibling": true,
		"corpus.sibling_exts":           DefaultSiblingExts,
		"corpus.workers":                DefaultCorpusWorkers,
		"corpus.scope":                  DefaultCorpusScope,
		"corpus.source":                 DefaultCorpusSource,
		"tree.backend":                  DefaultTreeBackend,
		"tree.path":                     DefaultTreePath,
		"evaluation.ground_truth":       "",
		"cache.enabled":                 false,
		"cache.memory_ttl":              DefaultCacheMemoryTTL,
		"cache.redis.addr":              "",
		"cache.redis.password":          "",
		"cache.redis.db":                0,
		"cache.redis.ttl":               DefaultRedisTTL,
		"cache.redis.key_prefix":        DefaultRedisKeyPrefix,
		"postgres.host":                 DefaultPostgresHost,
		"postgres.port":                 DefaultPostgresPort,
		"postgres.user":                 "",
		"postgres.password":             "",
		"postgres.db_name":              DefaultPostgresDBName,
		"postgres.ssl_mode":             "disable",
		"postgres.auto_migrate":         true,
		"neo4j.uri":                     "",
		"neo4j.user":                    "",
		"neo4j.password":                "",
		"neo4j.database":                DefaultNeo4jDatabase,
		"minio.endpoint":                "",
		"minio.access_key":              "",
		"minio.secret_key":              "",
		"minio.bucket":                  DefaultMinIOBucket,
		"minio.use_ssl":                 false,
		"minio.object_key":              DefaultMinIOObjectKey,
		"kafka.brokers":                 []string{},
		"kafka.group_id":                DefaultKafkaGroupID,
		"kafka.articles_topic":          DefaultKafkaArticlesTopic,
		"kafka.tuples_topic":            DefaultKafkaTuplesTopic,
		"kafka.publish":                 false,
		"server.port":                   DefaultServerPort,
		"server.mode":                   DefaultServerMode,
		"server.allowed_origins":        []string{},
		"server.tree_reload_interval":   DefaultTreeReloadInterval,
		"metrics.enabled":               true,
		"metrics.namespace":             DefaultMetricsNamespace,
	}
}

// ApplyDefaults fills every zero-value field in cfg with its default.  Fields
// that have already been set are left unchanged so that explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.TreeReloadInterval == 0 {
		cfg.Server.TreeReloadInterval = DefaultTreeReloadInterval
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Corpus ────────────────────────────────────────────────────────────────
	if cfg.Corpus.Workers == 0 {
		cfg.Corpus.Workers = DefaultCorpusWorkers
	}
	if cfg.Corpus.Scope == "" {
		cfg.Corpus.Scope = DefaultCorpusScope
	}
	if cfg.Corpus.Source == "" {
		cfg.Corpus.Source = DefaultCorpusSource
	}
	if len(cfg.Corpus.SiblingExts) == 0 {
		cfg.Corpus.SiblingExts = append([]string(nil), DefaultSiblingExts...)
	}

	// ── Tree ──────────────────────────────────────────────────────────────────
	if cfg.Tree.Backend == "" {
		cfg.Tree.Backend = DefaultTreeBackend
	}
	if cfg.Tree.Path == "" {
		cfg.Tree.Path = DefaultTreePath
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.MemoryTTL == 0 {
		cfg.Cache.MemoryTTL = DefaultCacheMemoryTTL
	}
	if cfg.Cache.Redis.TTL == 0 {
		cfg.Cache.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Cache.Redis.KeyPrefix == "" {
		cfg.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Cache.Redis.PoolSize == 0 {
		cfg.Cache.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Cache.Redis.DialTimeout == 0 {
		cfg.Cache.Redis.DialTimeout = 5 * time.Second
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.DBName == "" {
		cfg.Postgres.DBName = DefaultPostgresDBName
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = DefaultPostgresMaxConns / 2
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = time.Hour
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = DefaultNeo4jDatabase
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 50
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 30 * time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.ObjectKey == "" {
		cfg.MinIO.ObjectKey = DefaultMinIOObjectKey
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ArticlesTopic == "" {
		cfg.Kafka.ArticlesTopic = DefaultKafkaArticlesTopic
	}
	if cfg.Kafka.TuplesTopic == "" {
		cfg.Kafka.TuplesTopic = DefaultKafkaTuplesTopic
	}
	if cfg.Kafka.IdleTimeout == 0 {
		cfg.Kafka.IdleTimeout = DefaultKafkaIdleTimeout
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
