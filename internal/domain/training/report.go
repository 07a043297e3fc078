package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// Classifier is anything that labels feature rows. *forest.Forest satisfies it.
type Classifier interface {
	Predict(X [][]float64) ([]int, error)
}

// ClassMetrics holds the scores of one class.
type ClassMetrics struct {
	Label     model.Label `json:"-"`
	Precision float64     `json:"precision"`
	Recall    float64     `json:"recall"`
	F1        float64     `json:"f1-score"`
	Support   int         `json:"support"`
}

// Average holds a macro or weighted aggregate.
type Average struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is the per-class and aggregate performance of a classifier on an
// evaluation set. Every class is listed, including classes with no support.
type Report struct {
	Classes     [model.NumLabels]ClassMetrics
	Accuracy    float64
	MacroAvg    Average
	WeightedAvg Average
	Total       int
}

// Class returns the metrics of one label.
func (r Report) Class(l model.Label) (ClassMetrics, bool) {
	if !l.Valid() {
		return ClassMetrics{}, false
	}
	return r.Classes[l.Index()], true
}

// Macro returns the unweighted mean over the labels seen in truth or predictions.
func (r Report) Macro() Average { return r.MacroAvg }

// Weighted returns the support-weighted mean.
func (r Report) Weighted() Average { return r.WeightedAvg }

// MacroF1 is the selection score.
func (r Report) MacroF1() float64 { return r.MacroAvg.F1 }

// Evaluate predicts every row of X and scores the predictions against y.
func Evaluate(clf Classifier, X [][]float64, y []model.Label) (Report, error) {
	pred, err := predictLabels(clf, X, y)
	if err != nil {
		return Report{}, err
	}
	return NewReport(y, pred), nil
}

func predictLabels(clf Classifier, X [][]float64, y []model.Label) ([]model.Label, error) {
	if clf == nil {
		return nil, fmt.Errorf("%w: no classifier", ErrInvalidInput)
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: evaluation set is empty", ErrInvalidInput)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrInvalidInput, len(X), len(y))
	}
	raw, err := clf.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %w", ErrInvalidInput, err)
	}
	pred := make([]model.Label, len(raw))
	for i, v := range raw {
		pred[i] = model.Label(v)
	}
	return pred, nil
}

// NewReport scores predicted labels against true labels. Zero divisions score 0.
func NewReport(truth, pred []model.Label) Report {
	var tp, predicted, actual [model.NumLabels]int
	present := [model.NumLabels]bool{}
	correct := 0
	for i := range truth {
		t, p := truth[i], pred[i]
		if t.Valid() {
			actual[t.Index()]++
			present[t.Index()] = true
		}
		if p.Valid() {
			predicted[p.Index()]++
			present[p.Index()] = true
		}
		if t == p {
			correct++
			if t.Valid() {
				tp[t.Index()]++
			}
		}
	}

	r := Report{Total: len(truth)}
	if len(truth) > 0 {
		r.Accuracy = float64(correct) / float64(len(truth))
	}

	nPresent := 0
	for i := range r.Classes {
		c := ClassMetrics{
			Label:     model.LabelAt(i),
			Precision: ratio(tp[i], predicted[i]),
			Recall:    ratio(tp[i], actual[i]),
			Support:   actual[i],
		}
		if c.Precision+c.Recall > 0 {
			c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		r.Classes[i] = c

		if !present[i] {
			continue
		}
		nPresent++
		r.MacroAvg.Precision += c.Precision
		r.MacroAvg.Recall += c.Recall
		r.MacroAvg.F1 += c.F1
		w := float64(c.Support)
		r.WeightedAvg.Precision += w * c.Precision
		r.WeightedAvg.Recall += w * c.Recall
		r.WeightedAvg.F1 += w * c.F1
		r.WeightedAvg.Support += c.Support
	}
	if nPresent > 0 {
		r.MacroAvg.Precision /= float64(nPresent)
		r.MacroAvg.Recall /= float64(nPresent)
		r.MacroAvg.F1 /= float64(nPresent)
	}
	if total := r.WeightedAvg.Support; total > 0 {
		r.WeightedAvg.Precision /= float64(total)
		r.WeightedAvg.Recall /= float64(total)
		r.WeightedAvg.F1 /= float64(total)
	} else {
		r.WeightedAvg = Average{}
	}
	r.MacroAvg.Support = r.WeightedAvg.Support
	return r
}

// macroF1 is the cross-validation scorer.
func macroF1(truth, pred []model.Label) float64 {
	return NewReport(truth, pred).MacroAvg.F1
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// MarshalJSON emits the mapping consumed by the presentation layer:
// class name or "macro avg"/"weighted avg" to {precision, recall, f1-score, support},
// plus "accuracy".
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	for _, c := range r.Classes {
		if err := write(c.Label.String(), c); err != nil {
			return nil, err
		}
	}
	if err := write("accuracy", r.Accuracy); err != nil {
		return nil, err
	}
	if err := write("macro avg", r.MacroAvg); err != nil {
		return nil, err
	}
	if err := write("weighted avg", r.WeightedAvg); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Text renders the report as a fixed-width table.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}
