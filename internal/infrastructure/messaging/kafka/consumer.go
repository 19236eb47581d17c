// Package kafka streams annotated articles in from a topic and fans the
// extracted classification tuples out to another.
package kafka

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

var ErrConsumerClosed = errors.New(errors.ErrCodeServiceUnavailable, "consumer closed")

// ConsumerConfig holds configuration for the ArticleConsumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string

	// IdleTimeout ends a pass once no message arrived for this long.  The
	// articles topic is a finite batch from the consumer's point of view.
	IdleTimeout time.Duration

	// Rewind reads the whole topic from the first offset under a consumer
	// group of its own, so committed offsets of GroupID are neither used
	// nor moved.
	Rewind bool

	AutoOffsetReset string
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

// ConsumerStats counts what a consumer has seen.
type ConsumerStats struct {
	Consumed int64
	Skipped  int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ArticleConsumer is a corpus.Source backed by a consumer group.
type ArticleConsumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger

	mu      sync.Mutex
	pending map[int]kafka.Message // newest delivered message per partition

	consumed atomic.Int64
	skipped  atomic.Int64
	closed   atomic.Bool
}

var (
	_ corpus.Source    = (*ArticleConsumer)(nil)
	_ corpus.Committer = (*ArticleConsumer)(nil)
)

// NewArticleConsumer validates cfg and opens a group reader on the topic.
func NewArticleConsumer(cfg ConsumerConfig, logger logging.Logger) (*ArticleConsumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	applyConsumerDefaults(&cfg)
	return newArticleConsumer(kafka.NewReader(readerConfig(cfg)), cfg, logger), nil
}

// readerConfig maps cfg onto a group reader.  A rewinding reader joins a
// fresh group named after GroupID and starts at the first offset.
func readerConfig(cfg ConsumerConfig) kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	}
	if cfg.Rewind {
		rc.GroupID = cfg.GroupID + "-pass-" + uuid.NewString()
		return rc
	}
	if cfg.AutoOffsetReset == "latest" {
		rc.StartOffset = kafka.LastOffset
	}
	return rc
}

func newArticleConsumer(r ReaderInterface, cfg ConsumerConfig, logger logging.Logger) *ArticleConsumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	applyConsumerDefaults(&cfg)
	return &ArticleConsumer{
		reader:  r,
		config:  cfg,
		logger:  logger.Named("kafka"),
		pending: make(map[int]kafka.Message),
	}
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
}

// Each implements corpus.Source.  Messages that do not decode as an article
// are logged and skipped.  Nothing is committed here: delivered messages are
// held until Commit.  Each returns nil once the topic stays idle for
// IdleTimeout.
func (c *ArticleConsumer) Each(ctx context.Context, fn corpus.Handler) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.config.IdleTimeout)
		m, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if stderrors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("articles topic idle, ending pass",
					logging.String("topic", c.config.Topic),
					logging.Int64("consumed", c.consumed.Load()),
					logging.Duration("idle_timeout", c.config.IdleTimeout),
				)
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "fetch article message").
				WithDetail(c.config.Topic)
		}
		c.consumed.Add(1)

		origin := messageOrigin(m)
		a, err := corpus.DecodeArticle(m.Value)
		if err != nil {
			c.skipped.Add(1)
			c.logger.Warn("skipping undecodable article message",
				logging.String("origin", origin),
				logging.Err(err),
			)
			c.track(m)
			continue
		}
		a.Origin = origin

		if err := fn(ctx, a); err != nil {
			return err
		}
		c.track(m)
	}
}

func (c *ArticleConsumer) track(m kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.pending[m.Partition]; !ok || m.Offset > prev.Offset {
		c.pending[m.Partition] = m
	}
}

// Commit implements corpus.Committer.  It commits the newest delivered
// offset of every partition.  On failure the offsets stay pending.
func (c *ArticleConsumer) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(c.pending))
	for _, m := range c.pending {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Partition < msgs[j].Partition })

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.logger.Error("CommitMessages failed",
			logging.Int("partitions", len(msgs)),
			logging.Err(err),
		)
		return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "commit article offsets").
			WithDetail(c.config.Topic)
	}
	c.pending = make(map[int]kafka.Message)
	return nil
}

// messageOrigin renders "topic/partition/offset".
func messageOrigin(m kafka.Message) string {
	return m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10)
}

// Stats returns a snapshot of the counters.
func (c *ArticleConsumer) Stats() ConsumerStats {
	return ConsumerStats{Consumed: c.consumed.Load(), Skipped: c.skipped.Load()}
}

// Close closes the reader once.
func (c *ArticleConsumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed",
		logging.Int64("consumed", c.consumed.Load()),
		logging.Int64("skipped", c.skipped.Load()),
	)
	return err
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "Brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "GroupID required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "Topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeValidation, "Invalid AutoOffsetReset")
	}
	if cfg.IdleTimeout < 0 {
		return errors.New(errors.ErrCodeValidation, "IdleTimeout must be >= 0")
	}
	return nil
}
