// Package mining orchestrates one pass over an article corpus: extraction of
// classification tuples on a bounded worker pool, ordered aggregation into
// the taxonomy tree by a single writer, and persistence of the pruned tree.
package mining

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// DefaultWorkers is used when no worker count is configured.
const DefaultWorkers = 4

// Skip reasons reported to metrics.
const (
	SkipMissingUID   = "missing_uid"
	SkipDuplicateUID = "duplicate_uid"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Publisher receives the tuples of every classified article.
type Publisher interface {
	Publish(ctx context.Context, runID string, a *corpus.Article, tuples []xas.Tuple) error
}

// Observer is called once per article, in source order, after the article's
// tuples have been aggregated.
type Observer func(a *corpus.Article, tuples []xas.Tuple)

// RunRequest selects what one pass does.
type RunRequest struct {
	Scope xas.Scope

	// FromRecords reuses the xas_info already stored on each article
	// instead of re-extracting.
	FromRecords bool

	// WriteBack stores each article's tuples under xas_info in its JSON
	// record.  Only articles read from a file are rewritten.
	WriteBack bool

	// BuildTree aggregates, prunes and persists the taxonomy tree.
	BuildTree bool

	Observer Observer
}

// RunResult summarises one pass.
type RunResult struct {
	RunID    string          `json:"run_id"`
	Articles int             `json:"articles"`
	Skipped  int             `json:"skipped"`
	Tuples   int             `json:"tuples"`
	Leaves   int             `json:"leaves"`
	Pruned   int             `json:"pruned"`
	Nodes    []taxonomy.Node `json:"-"`
	Duration time.Duration   `json:"duration"`
}

// Config tunes the worker pool.
type Config struct {
	Workers int
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs corpus passes.  A Service may run several passes, but each
// pass owns its own tree.
type Service struct {
	builder   *xas.Builder
	registry  *xas.Registry
	cache     redis.TupleCache
	metrics   *prometheus.MinerMetrics
	publisher Publisher
	repo      taxonomy.Repository
	workers   int
	logger    logging.Logger
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithCache memoises extraction results by article content.
func WithCache(c redis.TupleCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics reports pass progress to m.
func WithMetrics(m *prometheus.MinerMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher fans tuples out after aggregation.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRepository persists the tree of BuildTree passes.
func WithRepository(r taxonomy.Repository) Option {
	return func(s *Service) { s.repo = r }
}

// NewService creates a Service extracting with builder.
func NewService(builder *xas.Builder, cfg Config, logger logging.Logger, opts ...Option) *Service {
	if builder == nil {
		panic("mining: builder must not be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	s := &Service{
		builder:  builder,
		registry: builder.Extractor().Registry(),
		workers:  cfg.Workers,
		logger:   logger.Named("mining"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = prometheus.NewMinerMetrics(nil)
	}
	return s
}

func validateRunRequest(req *RunRequest) error {
	if req == nil {
		return errors.InvalidParam("run request must not be nil")
	}
	if req.Scope == "" {
		req.Scope = xas.ScopeCaptions
	}
	if _, ok := xas.ParseScope(string(req.Scope)); !ok {
		return errors.InvalidParam("unknown extraction scope").WithDetail(string(req.Scope))
	}
	if req.BuildTree && req.Scope != xas.ScopeCaptions {
		return errors.InvalidParam("the taxonomy tree is built from figure captions only")
	}
	if req.FromRecords && req.WriteBack {
		return errors.InvalidParam("write-back has nothing to store when reusing stored records")
	}
	return nil
}

// extraction is the per-article output of a worker.
type extraction struct {
	seq     int
	article *corpus.Article
	tuples  []xas.Tuple
}

// Run consumes src once.  Articles are extracted concurrently and applied to
// the tree in source order, so the result matches a sequential pass.  An
// article without uid aborts the run with ErrCodeArticleMissingUID.  When
// src is a corpus.Committer it is committed only after the whole pass,
// including persistence of the tree, succeeded.
func (s *Service) Run(ctx context.Context, src corpus.Source, req *RunRequest) (*RunResult, error) {
	if err := validateRunRequest(req); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.InvalidParam("article source must not be nil")
	}

	start := time.Now()
	res := &RunResult{RunID: uuid.NewString()}
	log := s.logger.With(logging.String("run_id", res.RunID))
	log.Info("corpus pass started",
		logging.String("scope", string(req.Scope)),
		logging.Bool("from_records", req.FromRecords),
		logging.Bool("build_tree", req.BuildTree),
		logging.Int("workers", s.workers),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tree *taxonomy.Tree
	if req.BuildTree {
		tree = taxonomy.NewTree(s.registry)
	}

	results := make(chan extraction, s.workers)
	aggDone := make(chan error, 1)
	go func() {
		err := s.aggregate(ctx, res, req, tree, results)
		if err != nil {
			cancel()
		}
		aggDone <- err
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	seen := make(map[string]struct{})
	seq := 0
	srcErr := src.Each(gctx, func(_ context.Context, a *corpus.Article) error {
		if a == nil || a.UID == "" {
			origin := ""
			if a != nil {
				origin = a.Origin
			}
			s.metrics.RecordSkip(SkipMissingUID)
			log.Error("article has no uid, aborting run", logging.String("origin", origin))
			return errors.New(errors.ErrCodeArticleMissingUID, "article has no uid").WithDetail(origin)
		}
		if _, dup := seen[a.UID]; dup {
			s.metrics.RecordSkip(SkipDuplicateUID)
			res.Skipped++
			log.Debug("skipping repeated article", logging.String("uid", a.UID), logging.String("origin", a.Origin))
			return nil
		}
		seen[a.UID] = struct{}{}

		n := seq
		seq++
		g.Go(func() error {
			tuples, err := s.extract(gctx, a, req)
			if err != nil {
				return err
			}
			select {
			case results <- extraction{seq: n, article: a, tuples: tuples}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return nil
	})

	workErr := g.Wait()
	close(results)
	aggErr := <-aggDone

	switch {
	case aggErr != nil:
		return nil, aggErr
	case workErr != nil:
		return nil, workErr
	case srcErr != nil:
		return nil, srcErr
	}

	if tree != nil {
		res.Pruned = tree.Prune()
		res.Nodes = tree.Render()
		res.Leaves = len(tree.Leaves())
		s.metrics.RecordTree(res.Leaves, tree.Aggregates())

		if s.repo != nil {
			if err := s.repo.Save(ctx, res.Nodes); err != nil {
				log.Error("failed to persist taxonomy tree", logging.Err(err))
				return nil, err
			}
		}
	}

	if c, ok := src.(corpus.Committer); ok {
		if err := c.Commit(ctx); err != nil {
			log.Error("failed to acknowledge consumed articles", logging.Err(err))
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	log.Info("corpus pass complete",
		logging.Int("articles", res.Articles),
		logging.Int("skipped", res.Skipped),
		logging.Int("tuples", res.Tuples),
		logging.Int("leaves", res.Leaves),
		logging.Int("pruned", res.Pruned),
		logging.Duration("duration", res.Duration),
	)
	return res, nil
}

// aggregate is the single writer.  Extractions arrive in completion order
// and are applied in sequence order.
func (s *Service) aggregate(ctx context.Context, res *RunResult, req *RunRequest, tree *taxonomy.Tree, in <-chan extraction) error {
	pending := make(map[int]extraction)
	next := 0
	for ex := range in {
		pending[ex.seq] = ex
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := s.apply(ctx, res, req, tree, cur); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) apply(ctx context.Context, res *RunResult, req *RunRequest, tree *taxonomy.Tree, ex extraction) error {
	res.Articles++
	res.Tuples += len(ex.tuples)
	for _, t := range ex.tuples {
		s.metrics.RecordTuple(string(t.Region), string(t.Edge))
	}

	if tree != nil {
		added, err := tree.Add(ex.article, ex.tuples)
		if err != nil {
			return err
		}
		if added.Skipped > 0 {
			s.logger.Debug("tuples outside the taxonomy skipped",
				logging.String("uid", ex.article.UID),
				logging.Int("skipped", added.Skipped),
			)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, res.RunID, ex.article, ex.tuples); err != nil {
			s.logger.Error("failed to publish tuples", logging.String("uid", ex.article.UID), logging.Err(err))
			return err
		}
	}
	if req.Observer != nil {
		req.Observer(ex.article, ex.tuples)
	}
	return nil
}

// extract produces the deduplicated tuples of one article.
func (s *Service) extract(ctx context.Context, a *corpus.Article, req *RunRequest) ([]xas.Tuple, error) {
	start := time.Now()
	if req.FromRecords {
		tuples := xas.FromRecords(a.XASInfo).Tuples()
		s.metrics.RecordArticle(string(req.Scope), 0, time.Since(start))
		return tuples, nil
	}

	load := func(context.Context) ([]xas.Tuple, error) {
		return s.builder.Build(a, req.Scope).Tuples(), nil
	}

	var tuples []xas.Tuple
	key, ok := CacheKey(a, req.Scope)
	if s.cache != nil && ok {
		cached, err := s.cache.GetOrLoad(ctx, key, load)
		if err != nil {
			return nil, err
		}
		tuples = cached
	} else {
		tuples, _ = load(ctx)
	}
	s.metrics.RecordArticle(string(req.Scope), sentenceCount(a, req.Scope), time.Since(start))

	if req.WriteBack && isRecordFile(a.Origin) {
		set := xas.NewTupleSet(tuples...)
		if err := corpus.WriteXASInfo(a.Origin, set.Records()); err != nil {
			s.logger.Error("failed to write xas_info", logging.String("path", a.Origin), logging.Err(err))
			return nil, err
		}
	}
	return tuples, nil
}

// CacheKey derives the cache key of an article's extraction from the scope,
// the uid and a digest of the scanned sentences.  ok is false when the
// content cannot be digested.
func CacheKey(a *corpus.Article, scope xas.Scope) (key string, ok bool) {
	var content interface{} = a.Figures
	if scope == xas.ScopeArticle {
		content = a.Text()
	}
	data, err := json.Marshal(content)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return string(scope) + ":" + a.UID + ":" + hex.EncodeToString(sum[:]), true
}

func sentenceCount(a *corpus.Article, scope xas.Scope) int {
	if scope == xas.ScopeArticle {
		return len(a.Text())
	}
	n := 0
	for _, f := range a.Figures {
		if f.ID != "" {
			n += len(f.Caption)
		}
	}
	return n
}

// isRecordFile reports whether origin names a JSON record on disk rather
// than a stream position.
func isRecordFile(origin string) bool {
	return strings.EqualFold(filepath.Ext(origin), ".json")
}
