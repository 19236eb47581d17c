package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeServiceUnavailable, "producer closed")

// ProducerConfig holds configuration for the TuplePublisher.
type ProducerConfig struct {
	Brokers          []string
	Topic            string
	Acks             string
	MaxRetries       int
	BatchSize        int
	BatchTimeout     time.Duration
	WriteTimeout     time.Duration
	CompressionCodec string
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TuplePublisher emits one TuplesExtracted event per article, keyed by the
// article uid so every event of an article lands on one partition.
type TuplePublisher struct {
	writer WriterInterface
	config ProducerConfig
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
	failed atomic.Int64
}

// NewTuplePublisher validates cfg and creates a hash-balanced writer.
func NewTuplePublisher(cfg ProducerConfig, logger logging.Logger) (*TuplePublisher, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	applyProducerDefaults(&cfg)

	var acks kafka.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "all":
		acks = kafka.RequireAll
	default:
		acks = kafka.RequireOne
	}

	var compression kafka.Compression
	switch cfg.CompressionCodec {
	case "gzip":
		compression = kafka.Gzip
	case "snappy":
		compression = kafka.Snappy
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: acks,
		Compression:  compression,
	}
	return newTuplePublisher(writer, cfg, logger), nil
}

func newTuplePublisher(w WriterInterface, cfg ProducerConfig, logger logging.Logger) *TuplePublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	applyProducerDefaults(&cfg)
	return &TuplePublisher{writer: w, config: cfg, logger: logger.Named("kafka")}
}

func applyProducerDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

// Publish sends the tuples extracted from a. An article without tuples is
// still published so downstream consumers see every classified article.
func (p *TuplePublisher) Publish(ctx context.Context, runID string, a *corpus.Article, tuples []xas.Tuple) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if a == nil || a.UID == "" {
		return errors.New(errors.ErrCodeArticleMissingUID, "cannot publish tuples of an article without uid")
	}

	env, err := NewEventEnvelope(EventTuplesExtracted, TuplesExtractedPayload{
		RunID:  runID,
		UID:    a.UID,
		Title:  a.Title,
		Year:   string(a.Year),
		Origin: a.Origin,
		Tuples: xas.NewTupleSet(tuples...).Records(),
	})
	if err != nil {
		return err
	}
	// The writer carries the topic, so the message must not set one.
	msg, err := env.ToMessage("", []byte(a.UID))
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeExternalService, "publish tuples").WithDetail(a.UID)
	}
	p.sent.Add(1)
	p.logger.Debug("tuples published",
		logging.String("uid", a.UID),
		logging.Int("tuples", len(tuples)),
	)
	return nil
}

// Sent returns the number of events written.
func (p *TuplePublisher) Sent() int64 { return p.sent.Load() }

// Close flushes and closes the writer once.
func (p *TuplePublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed",
		logging.Int64("sent", p.sent.Load()),
		logging.Int64("failed", p.failed.Load()),
	)
	return err
}

// ValidateProducerConfig validates configuration.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "Brokers required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "Topic required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "MaxRetries must be >= 0")
	}
	return nil
}
