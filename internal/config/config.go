// Package config defines all configuration structures for xas-miner.  No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables for the read-only tree API.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// TreeReloadInterval is how often serve reloads the tree from its
	// backend.  Negative disables periodic reloads.
	TreeReloadInterval time.Duration `mapstructure:"tree_reload_interval" yaml:"tree_reload_interval"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format" yaml:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths"`
}

// CorpusConfig selects the article records to mine.
type CorpusConfig struct {
	Dirs                 []string `mapstructure:"dirs" yaml:"dirs"`
	RequireSourceSibling bool     `mapstructure:"require_source_sibling" yaml:"require_source_sibling"`
	SiblingExts          []string `mapstructure:"sibling_exts" yaml:"sibling_exts"`
	Workers              int      `mapstructure:"workers" yaml:"workers"`
	Scope                string   `mapstructure:"scope" yaml:"scope"`   // "captions" | "article"
	Source               string   `mapstructure:"source" yaml:"source"` // "dir" | "kafka"
}

// TreeConfig selects where the taxonomy tree is persisted.
type TreeConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "file" | "postgres" | "neo4j" | "minio"
	Path    string `mapstructure:"path" yaml:"path"`
}

// EvaluationConfig points at the hand-labelled ground truth.
type EvaluationConfig struct {
	GroundTruth string `mapstructure:"ground_truth" yaml:"ground_truth"`
}

// RedisConfig holds Redis connection parameters for the tuple cache.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DB          int           `mapstructure:"db" yaml:"db"`
	PoolSize    int           `mapstructure:"pool_size" yaml:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	TTL         time.Duration `mapstructure:"ttl" yaml:"ttl"`
	KeyPrefix   string        `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// CacheConfig controls the extraction result cache.  An empty redis address
// keeps the cache in-process only.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	Redis     RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	DBName          string        `mapstructure:"db_name" yaml:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Neo4jConfig holds Neo4j connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri" yaml:"uri"`
	User                  string        `mapstructure:"user" yaml:"user"`
	Password              string        `mapstructure:"password" yaml:"password"`
	Database              string        `mapstructure:"database" yaml:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size" yaml:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	ObjectKey string `mapstructure:"object_key" yaml:"object_key"`
}

// KafkaConfig holds Kafka consumer and producer parameters.
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers" yaml:"brokers"`
	GroupID       string        `mapstructure:"group_id" yaml:"group_id"`
	ArticlesTopic string        `mapstructure:"articles_topic" yaml:"articles_topic"`
	TuplesTopic   string        `mapstructure:"tuples_topic" yaml:"tuples_topic"`
	Publish       bool          `mapstructure:"publish" yaml:"publish"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every infrastructure
// component and application service reads its settings from the relevant
// sub-struct.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Corpus     CorpusConfig     `mapstructure:"corpus" yaml:"corpus"`
	Tree       TreeConfig       `mapstructure:"tree" yaml:"tree"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Postgres   PostgresConfig   `mapstructure:"postgres" yaml:"postgres"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j" yaml:"neo4j"`
	MinIO      MinIOConfig      `mapstructure:"minio" yaml:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka" yaml:"kafka"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// Tree backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendMinIO    = "minio"
)

// Article sources.
const (
	SourceDir   = "dir"
	SourceKafka = "kafka"
)

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Corpus
	if c.Corpus.Workers < 1 {
		return fmt.Errorf("config: corpus.workers must be >= 1, got %d", c.Corpus.Workers)
	}
	switch c.Corpus.Scope {
	case "captions", "article":
	default:
		return fmt.Errorf("config: corpus.scope %q is invalid; expected captions|article", c.Corpus.Scope)
	}
	switch c.Corpus.Source {
	case SourceDir:
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.ArticlesTopic == "" {
			return fmt.Errorf("config: corpus.source kafka requires kafka.brokers and kafka.articles_topic")
		}
	default:
		return fmt.Errorf("config: corpus.source %q is invalid; expected dir|kafka", c.Corpus.Source)
	}

	// Tree
	switch c.Tree.Backend {
	case BackendFile:
		if c.Tree.Path == "" {
			return fmt.Errorf("config: tree.path is required for the file backend")
		}
	case BackendPostgres:
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("config: postgres.host and postgres.db_name are required for the postgres backend")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("config: neo4j.uri is required for the neo4j backend")
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: tree.backend %q is invalid; expected file|postgres|neo4j|minio", c.Tree.Backend)
	}

	// Cache
	if c.Cache.Redis.DB < 0 {
		return fmt.Errorf("config: cache.redis.db must be >= 0, got %d", c.Cache.Redis.DB)
	}

	// Kafka
	if c.Kafka.Publish && (len(c.Kafka.Brokers) == 0 || c.Kafka.TuplesTopic == "") {
		return fmt.Errorf("config: kafka.publish requires kafka.brokers and kafka.tuples_topic")
	}

	return nil
}
