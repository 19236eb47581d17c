package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/xas-miner/internal/config"
)

// validConfig returns a Config that passes Validate().
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	t.Parallel()
	for _, p := range []int{-1, 65536, 100000} {
		p := p
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Server.Port = p
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"server mode", func(c *config.Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "text" }, "log.format"},
		{"workers", func(c *config.Config) { c.Corpus.Workers = -2 }, "corpus.workers"},
		{"scope", func(c *config.Config) { c.Corpus.Scope = "body" }, "corpus.scope"},
		{"source", func(c *config.Config) { c.Corpus.Source = "s3" }, "corpus.source"},
		{"kafka source without brokers", func(c *config.Config) { c.Corpus.Source = config.SourceKafka }, "corpus.source kafka"},
		{"file backend path", func(c *config.Config) { c.Tree.Path = "" }, "tree.path"},
		{"backend", func(c *config.Config) { c.Tree.Backend = "sqlite" }, "tree.backend"},
		{"postgres host", func(c *config.Config) {
			c.Tree.Backend = config.BackendPostgres
			c.Postgres.Host = ""
		}, "postgres.host"},
		{"neo4j uri", func(c *config.Config) { c.Tree.Backend = config.BackendNeo4j }, "neo4j.uri"},
		{"minio endpoint", func(c *config.Config) { c.Tree.Backend = config.BackendMinIO }, "minio.endpoint"},
		{"redis db", func(c *config.Config) { c.Cache.Redis.DB = -1 }, "cache.redis.db"},
		{"publish without brokers", func(c *config.Config) { c.Kafka.Publish = true }, "kafka.publish"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "config: ")
		})
	}
}

func TestConfig_Validate_Backends(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Tree.Backend = config.BackendNeo4j
	cfg.Neo4j.URI = "bolt://localhost:7687"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Tree.Backend = config.BackendMinIO
	cfg.MinIO.Endpoint = "localhost:9000"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Tree.Backend = config.BackendPostgres
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Corpus.Source = config.SourceKafka
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}
