package corpus

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// Handler receives one article.  Returning an error stops the iteration.
type Handler func(ctx context.Context, a *Article) error

// Source yields annotated articles.  Implementations stop early when ctx is
// cancelled or the handler fails, and return that error.
type Source interface {
	Each(ctx context.Context, fn Handler) error
}

// Committer is implemented by sources that hold back acknowledging what
// Each delivered.  The consumer calls Commit once everything delivered so
// far has been durably processed; a pass that fails never commits, so its
// articles are delivered again.
type Committer interface {
	Commit(ctx context.Context) error
}

// DefaultSiblingExts are the original-article extensions that mark a JSON
// file as a generated record rather than a downloaded one.
var DefaultSiblingExts = []string{".xml", ".nxml", ".html"}

// DirSourceConfig configures a DirSource.
type DirSourceConfig struct {
	Dirs []string `mapstructure:"dirs" yaml:"dirs"`

	// RequireSibling accepts a JSON file only when an original article with
	// the same stem and one of SiblingExts sits next to it.
	RequireSibling bool     `mapstructure:"require_source_sibling" yaml:"require_source_sibling"`
	SiblingExts    []string `mapstructure:"sibling_exts" yaml:"sibling_exts"`
}

// DirSource walks directories of article JSON records.
type DirSource struct {
	cfg    DirSourceConfig
	logger logging.Logger
}

// NewDirSource creates a DirSource.
func NewDirSource(cfg DirSourceConfig, logger logging.Logger) *DirSource {
	if len(cfg.SiblingExts) == 0 {
		cfg.SiblingExts = DefaultSiblingExts
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DirSource{cfg: cfg, logger: logger}
}

// Paths lists the accepted record files in lexical order.
func (s *DirSource) Paths() ([]string, error) {
	var paths []string
	for _, dir := range s.cfg.Dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
				return nil
			}
			if s.cfg.RequireSibling && !s.hasSibling(path) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "walk corpus directory").
				WithDetail("dir=" + dir)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *DirSource) hasSibling(path string) bool {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range s.cfg.SiblingExts {
		if _, err := os.Stat(stem + ext); err == nil {
			return true
		}
	}
	return false
}

// Each implements Source.  Records that fail to decode are logged and
// skipped.
func (s *DirSource) Each(ctx context.Context, fn Handler) error {
	paths, err := s.Paths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := ReadArticle(path)
		if err != nil {
			s.logger.Warn("skipping unreadable article record", logging.String("path", path), logging.Err(err))
			continue
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// ReadArticle decodes the record at path and sets its Origin.
func ReadArticle(path string) (*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "read article record").WithDetail(path)
	}
	a, err := DecodeArticle(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArticleMalformed, "decode article record").WithDetail(path)
	}
	a.Origin = path
	return a, nil
}

// WriteXASInfo stores records under "xas_info" in the JSON file at path,
// leaving every other field untouched.
func WriteXASInfo(path string, records []XASRecord) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "read article record").WithDetail(path)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeArticleMalformed, "decode article record").WithDetail(path)
	}
	if records == nil {
		records = []XASRecord{}
	}
	info, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode xas_info")
	}
	doc["xas_info"] = info

	out, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode article record")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "stat article record").WithDetail(path)
	}
	if err := os.WriteFile(path, out, fi.Mode().Perm()); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "rewrite article record").WithDetail(path)
	}
	return nil
}

// SliceSource serves a fixed list of articles.
type SliceSource []*Article

// Each implements Source.
func (s SliceSource) Each(ctx context.Context, fn Handler) error {
	for _, a := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
