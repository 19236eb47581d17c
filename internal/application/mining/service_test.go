package mining

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/domain/xas"
	"github.com/turtacn/xas-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/xas-miner/internal/testutil"
	pkgerrors "github.com/turtacn/xas-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, nodes []taxonomy.Node) error {
	return m.Called(ctx, nodes).Error(0)
}

func (m *MockRepository) Load(ctx context.Context) ([]taxonomy.Node, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]taxonomy.Node), args.Error(1)
}

type recordingPublisher struct {
	mu    sync.Mutex
	runs  map[string]struct{}
	uids  []string
	fail  error
	count map[string]int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{runs: make(map[string]struct{}), count: make(map[string]int)}
}

func (p *recordingPublisher) Publish(_ context.Context, runID string, a *corpus.Article, tuples []xas.Tuple) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.runs[runID] = struct{}{}
	p.uids = append(p.uids, a.UID)
	p.count[a.UID] = len(tuples)
	return nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func cuArticle(uid string) *corpus.Article {
	return testutil.Article(uid,
		testutil.Figure("fig1", "Figure 1",
			testutil.Sentence("Cu K-edge XANES spectra were recorded.",
				"Cu", "K-edge", "XANES", "spectra", "were", "recorded", ".")),
	)
}

func feMnArticle(uid string) *corpus.Article {
	return testutil.Article(uid,
		testutil.Figure("fig2", "Figure 2",
			testutil.Sentence("Fe L3-edges and Mn L3-edge EXAFS data are shown.",
				"Fe", "L3-edges", "and", "Mn", "L3-edge", "EXAFS", "data", "are", "shown", ".")),
		testutil.Figure("", "Figure S1",
			testutil.Sentence("Cu K-edge XANES spectra", "Cu", "K-edge", "XANES", "spectra")),
	)
}

func corpusOf(n int) corpus.SliceSource {
	var src corpus.SliceSource
	for i := 0; i < n; i++ {
		uid := fmt.Sprintf("10.1/%03d", i)
		if i%2 == 0 {
			src = append(src, cuArticle(uid))
		} else {
			src = append(src, feMnArticle(uid))
		}
	}
	return src
}

func newTestService(workers int, opts ...Option) *Service {
	return NewService(xas.NewBuilder(xas.NewExtractor(nil, nil)), Config{Workers: workers}, nil, opts...)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRun_BuildTree(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(nodes []taxonomy.Node) bool {
		return len(nodes) > 0 && nodes[0].ID == taxonomy.RootID
	})).Return(nil)

	svc := newTestService(2, WithRepository(repo))
	src := corpus.SliceSource{cuArticle("10.1/a"), feMnArticle("10.1/b")}

	res, err := svc.Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Articles)
	assert.Equal(t, 3, res.Tuples)
	assert.Equal(t, 3, res.Leaves)
	assert.Greater(t, res.Pruned, 0)

	idx := taxonomy.NewIndex(res.Nodes)
	root, err := idx.Node(taxonomy.RootID)
	require.NoError(t, err)
	assert.Equal(t, 3, root.Count)
	assert.Equal(t, "XAS (3)", root.Text)

	papers, err := idx.Papers("xanes_Cu_k")
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "10.1/a_0", papers[0].ID)

	for _, n := range res.Nodes {
		if !n.IsLeaf() {
			assert.Positive(t, n.Count, n.ID)
		}
	}
}

func TestRun_ConcurrentMatchesSequential(t *testing.T) {
	src := corpusOf(40)

	seq, err := newTestService(1).Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	par, err := newTestService(8).Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)

	assert.Equal(t, seq.Nodes, par.Nodes)
	assert.Equal(t, seq.Tuples, par.Tuples)
}

func TestRun_ObserverSeesSourceOrder(t *testing.T) {
	src := corpusOf(25)
	var got []string
	req := &RunRequest{Observer: func(a *corpus.Article, _ []xas.Tuple) { got = append(got, a.UID) }}

	_, err := newTestService(6).Run(context.Background(), src, req)
	require.NoError(t, err)

	require.Len(t, got, len(src))
	for i, a := range src {
		assert.Equal(t, a.UID, got[i])
	}
}

func TestRun_MissingUIDAborts(t *testing.T) {
	log := testutil.NewMockLogger()
	svc := NewService(xas.NewBuilder(xas.NewExtractor(nil, nil)), Config{Workers: 2}, log)

	orphan := cuArticle("")
	orphan.Origin = "corpus/orphan.json"
	src := corpus.SliceSource{cuArticle("10.1/a"), orphan, cuArticle("10.1/c")}

	res, err := svc.Run(context.Background(), src, &RunRequest{BuildTree: true})
	assert.Nil(t, res)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeArticleMissingUID))
	assert.True(t, log.HasMessage("error", "article has no uid, aborting run"))
	assert.False(t, log.HasMessage("info", "corpus pass complete"))
}

func TestRun_SkipsRepeatedArticles(t *testing.T) {
	src := corpus.SliceSource{cuArticle("10.1/a"), cuArticle("10.1/a")}

	res, err := newTestService(2).Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Articles)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Leaves)
}

func TestRun_FromRecords(t *testing.T) {
	a := testutil.Article("10.1/rec")
	a.XASInfo = []corpus.XASRecord{
		{FigID: "fig9", Region: "XANES", Element: "Ni", Edge: "K"},
		{FigID: "fig9", Region: "XANES", Element: "Ni", Edge: "K"},
		{FigID: "fig9", Region: "", Element: "Ni", Edge: "K"},
	}

	res, err := newTestService(1).Run(context.Background(), corpus.SliceSource{a}, &RunRequest{FromRecords: true, BuildTree: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tuples)

	idx := taxonomy.NewIndex(res.Nodes)
	papers, err := idx.Papers("xanes_Ni_k")
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, []taxonomy.Evidence{{FigCaption: []string{}}}, papers[0].Data)
}

func TestRun_WriteBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	record := `{"uid":"10.1/w","year":2020,"title":"W","extra":{"keep":true},"figures":[{"fig_id":"fig1","label":"Figure 1","caption":[` +
		`{"sent":"Cu K-edge XANES","token_pos":[["Cu",0,2,"NN"],["K-edge",3,9,"NN"],["XANES",10,15,"NN"]],"chemical_entity":[["Cu",0,2]]}` +
		`],"fig_file":"f1.jpg"}]}`
	require.NoError(t, os.WriteFile(path, []byte(record), 0o644))

	src := corpus.NewDirSource(corpus.DirSourceConfig{Dirs: []string{dir}}, nil)
	res, err := newTestService(1).Run(context.Background(), src, &RunRequest{WriteBack: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tuples)
	assert.Nil(t, res.Nodes)

	back, err := corpus.ReadArticle(path)
	require.NoError(t, err)
	assert.Equal(t, []corpus.XASRecord{{FigID: "fig1", Region: "XANES", Element: "Cu", Edge: "K"}}, back.XASInfo)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"extra":{"keep":true}`)
}

func TestRun_WriteBackIgnoresStreamOrigins(t *testing.T) {
	a := cuArticle("10.1/k")
	a.Origin = "xas.articles/0/12"

	res, err := newTestService(1).Run(context.Background(), corpus.SliceSource{a}, &RunRequest{WriteBack: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Articles)
}

func TestRun_Publishes(t *testing.T) {
	pub := newRecordingPublisher()
	src := corpusOf(6)

	res, err := newTestService(3, WithPublisher(pub)).Run(context.Background(), src, &RunRequest{})
	require.NoError(t, err)

	require.Len(t, pub.uids, 6)
	assert.Equal(t, src[0].UID, pub.uids[0])
	assert.Equal(t, 1, pub.count[src[0].UID])
	assert.Equal(t, 2, pub.count[src[1].UID])
	assert.Contains(t, pub.runs, res.RunID)
}

func TestRun_PublishFailureAborts(t *testing.T) {
	pub := newRecordingPublisher()
	pub.fail = pkgerrors.New(pkgerrors.ErrCodeExternalService, "broker down")

	_, err := newTestService(2, WithPublisher(pub)).Run(context.Background(), corpusOf(10), &RunRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestRun_UsesCache(t *testing.T) {
	cache := redis.NewMemoryTupleCache(time.Minute, nil)
	svc := newTestService(4, WithCache(cache))
	src := corpusOf(5)

	first, err := svc.Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	assert.Equal(t, 5, cache.Len())

	second, err := svc.Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_SaveFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).
		Return(pkgerrors.New(pkgerrors.ErrCodeTreePersistFailed, "disk full"))

	_, err := newTestService(1, WithRepository(repo)).Run(context.Background(), corpusOf(2), &RunRequest{BuildTree: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTreePersistFailed))
}

func TestRun_SourceFailure(t *testing.T) {
	boom := errors.New("stream broken")
	src := failingSource{err: boom}

	_, err := newTestService(1).Run(context.Background(), src, &RunRequest{})
	assert.ErrorIs(t, err, boom)
}

type failingSource struct{ err error }

func (s failingSource) Each(context.Context, corpus.Handler) error { return s.err }

// committingSource records whether the pass acknowledged its articles and
// whether the tree had been saved by then.
type committingSource struct {
	corpus.SliceSource
	repo      *MockRepository
	commitErr error
	commits   int
	savedWhen []bool
}

func (s *committingSource) Commit(context.Context) error {
	s.commits++
	if s.repo != nil {
		s.savedWhen = append(s.savedWhen, len(s.repo.Calls) > 0)
	}
	return s.commitErr
}

func TestRun_CommitsAfterSave(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	src := &committingSource{SliceSource: corpusOf(4), repo: repo}

	_, err := newTestService(2, WithRepository(repo)).Run(context.Background(), src, &RunRequest{BuildTree: true})
	require.NoError(t, err)
	assert.Equal(t, 1, src.commits)
	assert.Equal(t, []bool{true}, src.savedWhen)
}

func TestRun_FailedPassDoesNotCommit(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).
		Return(pkgerrors.New(pkgerrors.ErrCodeTreePersistFailed, "disk full"))
	src := &committingSource{SliceSource: corpusOf(3)}

	_, err := newTestService(2, WithRepository(repo)).Run(context.Background(), src, &RunRequest{BuildTree: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTreePersistFailed))
	assert.Zero(t, src.commits)

	pub := newRecordingPublisher()
	pub.fail = pkgerrors.New(pkgerrors.ErrCodeExternalService, "broker down")
	_, err = newTestService(2, WithPublisher(pub)).Run(context.Background(), src, &RunRequest{})
	assert.Error(t, err)
	assert.Zero(t, src.commits)

	missing := &committingSource{SliceSource: corpus.SliceSource{cuArticle("10.1/a"), testutil.Article("")}}
	_, err = newTestService(1).Run(context.Background(), missing, &RunRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeArticleMissingUID))
	assert.Zero(t, missing.commits)
}

func TestRun_CommitFailure(t *testing.T) {
	src := &committingSource{
		SliceSource: corpusOf(2),
		commitErr:   pkgerrors.New(pkgerrors.ErrCodeSourceUnavailable, "coordinator gone"),
	}
	_, err := newTestService(1).Run(context.Background(), src, &RunRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSourceUnavailable))
	assert.Equal(t, 1, src.commits)
}

func TestRun_FromRecordsReportsArticles(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "mining"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewMinerMetrics(collector)

	a := testutil.Article("10.1/rec")
	a.XASInfo = []corpus.XASRecord{{FigID: "fig1", Region: "XANES", Element: "Cu", Edge: "K"}}
	b := testutil.Article("10.1/rec2")

	_, err = newTestService(2, WithMetrics(metrics)).Run(context.Background(),
		corpus.SliceSource{a, b}, &RunRequest{FromRecords: true, BuildTree: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	out := w.Body.String()
	assert.Contains(t, out, `mining_articles_processed_total{scope="captions"} 2`)
	assert.Contains(t, out, `mining_extraction_duration_seconds_count{scope="captions"} 2`)
}

func TestRun_Validation(t *testing.T) {
	svc := newTestService(1)
	ctx := context.Background()

	_, err := svc.Run(ctx, corpus.SliceSource{}, &RunRequest{Scope: xas.ScopeArticle, BuildTree: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidParam))

	_, err = svc.Run(ctx, corpus.SliceSource{}, &RunRequest{Scope: "paragraphs"})
	assert.Error(t, err)

	_, err = svc.Run(ctx, corpus.SliceSource{}, &RunRequest{FromRecords: true, WriteBack: true})
	assert.Error(t, err)

	_, err = svc.Run(ctx, nil, &RunRequest{})
	assert.Error(t, err)
}

func TestRun_ArticleScope(t *testing.T) {
	a := testutil.Article("10.1/body")
	a.BodyText = []corpus.Sentence{
		testutil.Sentence("Cu K-edge XANES spectra were recorded.",
			"Cu", "K-edge", "XANES", "spectra", "were", "recorded", "."),
	}

	var tuples []xas.Tuple
	req := &RunRequest{Scope: xas.ScopeArticle, Observer: func(_ *corpus.Article, ts []xas.Tuple) { tuples = ts }}
	_, err := newTestService(1).Run(context.Background(), corpus.SliceSource{a}, req)
	require.NoError(t, err)
	assert.Equal(t, []xas.Tuple{{Region: xas.RegionXANES, Element: "Cu", Edge: xas.EdgeK}}, tuples)
}

func TestCacheKey(t *testing.T) {
	a := cuArticle("10.1/a")
	k1, ok := CacheKey(a, xas.ScopeCaptions)
	require.True(t, ok)
	assert.Contains(t, k1, "captions:10.1/a:")

	k2, _ := CacheKey(a, xas.ScopeArticle)
	assert.NotEqual(t, k1, k2)

	b := cuArticle("10.1/a")
	b.Figures[0].Caption[0].Text = "changed"
	k3, _ := CacheKey(b, xas.ScopeCaptions)
	assert.NotEqual(t, k1, k3)
}
