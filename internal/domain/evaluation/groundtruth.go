// Package evaluation scores the persisted taxonomy tree against a
// hand-labelled ground truth.
package evaluation

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// Ground-truth spreadsheet columns.
const (
	colURL     = 2
	colElement = 4
	colRegion  = 5
	colEdge    = 6
)

// None is the sentinel label for a missed or spurious prediction.
const None = "none"

// Labels maps an article key to its labels, keeping first-seen key order.
type Labels struct {
	keys   []string
	labels map[string][]string
}

// NewLabels creates an empty label table.
func NewLabels() *Labels {
	return &Labels{labels: make(map[string][]string)}
}

// Add appends label to key's labels.
func (l *Labels) Add(key, label string) {
	if _, ok := l.labels[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.labels[key] = append(l.labels[key], label)
}

// Keys returns article keys in first-seen order.
func (l *Labels) Keys() []string { return l.keys }

// Get returns key's labels.
func (l *Labels) Get(key string) ([]string, bool) {
	v, ok := l.labels[key]
	return v, ok
}

// Len returns the number of articles.
func (l *Labels) Len() int { return len(l.keys) }

// ArticleKey strips the scheme from an article URL so http and https links
// to the same article agree.  ok is false when the URL has no ":".
func ArticleKey(url string) (string, bool) {
	i := strings.Index(url, ":")
	if i < 0 {
		return "", false
	}
	return url[i+1:], true
}

// Label builds the lowercase "{region}_{element}_{edge}" class label.
func Label(region, element, edge string) string {
	return strings.ToLower(region + "_" + element + "_" + edge)
}

// ReadGroundTruth parses the ground-truth CSV.  The first row is a header.
// Rows that are too short or whose URL has no scheme are logged and skipped.
func ReadGroundTruth(r io.Reader, logger logging.Logger) (*Labels, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return NewLabels(), nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeGroundTruthInvalid, "read ground truth header")
	}

	out := NewLabels()
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeGroundTruthInvalid, "read ground truth row")
		}
		if len(row) <= colEdge {
			logger.Warn("skipping short ground truth row", logging.Int("line", line), logging.Int("columns", len(row)))
			continue
		}
		key, ok := ArticleKey(strings.TrimSpace(row[colURL]))
		if !ok {
			logger.Warn("skipping ground truth row without url scheme", logging.Int("line", line), logging.String("url", row[colURL]))
			continue
		}
		out.Add(key, Label(
			strings.TrimSpace(row[colRegion]),
			strings.TrimSpace(row[colElement]),
			strings.TrimSpace(row[colEdge]),
		))
	}
	return out, nil
}

// LoadGroundTruth reads the ground-truth CSV at path.
func LoadGroundTruth(path string, logger logging.Logger) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGroundTruthInvalid, "open ground truth").WithDetail(path)
	}
	defer f.Close()
	return ReadGroundTruth(f, logger)
}

// Predictions collects the predicted labels of every article leaf: the key
// is the leaf link without scheme, the label its lowercased parent class.
func Predictions(nodes []taxonomy.Node) *Labels {
	out := NewLabels()
	for _, n := range nodes {
		if !n.IsLeaf() {
			continue
		}
		key, ok := ArticleKey(n.Href())
		if !ok {
			continue
		}
		out.Add(key, strings.ToLower(n.Parent))
	}
	return out
}
