package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
)

// Alignment is the pair of equal-length label lists scored by Report.
type Alignment struct {
	True []string `json:"y_true"`
	Pred []string `json:"y_pred"`
}

// Align pairs true and predicted labels per ground-truth article.  Labels
// present on both sides align with themselves; the remaining true-only and
// predicted-only labels are appended in sorted order and the shorter side
// is padded with None.  An article without predictions aligns each true
// label with None.
func Align(truth, pred *Labels) Alignment {
	var al Alignment
	for _, key := range truth.Keys() {
		t, _ := truth.Get(key)
		p, ok := pred.Get(key)
		if !ok {
			al.True = append(al.True, t...)
			al.Pred = append(al.Pred, nones(len(t))...)
			continue
		}

		ts, ps := toSet(t), toSet(p)
		var both, trueOnly, predOnly []string
		for l := range ts {
			if _, ok := ps[l]; ok {
				both = append(both, l)
			} else {
				trueOnly = append(trueOnly, l)
			}
		}
		for l := range ps {
			if _, ok := ts[l]; !ok {
				predOnly = append(predOnly, l)
			}
		}
		sort.Strings(both)
		sort.Strings(trueOnly)
		sort.Strings(predOnly)

		al.True = append(al.True, both...)
		al.Pred = append(al.Pred, both...)
		al.True = append(al.True, trueOnly...)
		al.Pred = append(al.Pred, predOnly...)
		if d := len(al.True) - len(al.Pred); d > 0 {
			al.Pred = append(al.Pred, nones(d)...)
		} else if d < 0 {
			al.True = append(al.True, nones(-d)...)
		}
	}
	return al
}

func toSet(labels []string) map[string]struct{} {
	s := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func nones(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = None
	}
	return out
}

// ClassScore is the per-class result.
type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a classification report over an Alignment.
type Report struct {
	Classes     []ClassScore `json:"classes"`
	MicroAvg    ClassScore   `json:"micro_avg"`
	MacroAvg    ClassScore   `json:"macro_avg"`
	WeightedAvg ClassScore   `json:"weighted_avg"`
}

// Score computes per-class precision, recall and F1.  Reported classes are
// every label seen on either side except None, sorted; None still counts
// as a wrong prediction or a missed truth.
func Score(al Alignment) Report {
	type tally struct{ tp, predicted, actual int }
	counts := make(map[string]*tally)
	get := func(l string) *tally {
		c, ok := counts[l]
		if !ok {
			c = &tally{}
			counts[l] = c
		}
		return c
	}
	n := len(al.True)
	if len(al.Pred) < n {
		n = len(al.Pred)
	}
	for i := 0; i < n; i++ {
		t, p := al.True[i], al.Pred[i]
		get(t).actual++
		get(p).predicted++
		if t == p {
			get(t).tp++
		}
	}

	labels := make([]string, 0, len(counts))
	for l := range counts {
		if l != None {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)

	var rep Report
	var tp, predicted, actual int
	for _, l := range labels {
		c := counts[l]
		s := ClassScore{Label: l, Support: c.actual}
		s.Precision = ratio(c.tp, c.predicted)
		s.Recall = ratio(c.tp, c.actual)
		s.F1 = f1(s.Precision, s.Recall)
		rep.Classes = append(rep.Classes, s)

		tp += c.tp
		predicted += c.predicted
		actual += c.actual

		rep.MacroAvg.Precision += s.Precision
		rep.MacroAvg.Recall += s.Recall
		rep.MacroAvg.F1 += s.F1
		rep.WeightedAvg.Precision += s.Precision * float64(s.Support)
		rep.WeightedAvg.Recall += s.Recall * float64(s.Support)
		rep.WeightedAvg.F1 += s.F1 * float64(s.Support)
	}

	rep.MicroAvg = ClassScore{Label: "micro avg", Support: actual}
	rep.MicroAvg.Precision = ratio(tp, predicted)
	rep.MicroAvg.Recall = ratio(tp, actual)
	rep.MicroAvg.F1 = f1(rep.MicroAvg.Precision, rep.MicroAvg.Recall)

	rep.MacroAvg.Label, rep.MacroAvg.Support = "macro avg", actual
	rep.WeightedAvg.Label, rep.WeightedAvg.Support = "weighted avg", actual
	if k := float64(len(labels)); k > 0 {
		rep.MacroAvg.Precision /= k
		rep.MacroAvg.Recall /= k
		rep.MacroAvg.F1 /= k
	}
	if actual > 0 {
		w := float64(actual)
		rep.WeightedAvg.Precision /= w
		rep.WeightedAvg.Recall /= w
		rep.WeightedAvg.F1 /= w
	}
	return rep
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Class returns the score of label.
func (r Report) Class(label string) (ClassScore, bool) {
	for _, c := range r.Classes {
		if c.Label == label {
			return c, true
		}
	}
	return ClassScore{}, false
}

// String renders the report as an aligned text table.
func (r Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %10s %10s %10s %10s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(c ClassScore) {
		fmt.Fprintf(&b, "%*s %10.2f %10.2f %10.2f %10d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	row(r.MicroAvg)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}

// Evaluate aligns the ground truth with the predictions of a persisted tree
// and scores the result.
func Evaluate(truth *Labels, nodes []taxonomy.Node) (Alignment, Report) {
	al := Align(truth, Predictions(nodes))
	return al, Score(al)
}
