package training

import (
	"fmt"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// ConfusionMatrix counts evaluation rows by true label (row) and predicted
// label (column), in Normal, Suspect, Pathologic order.
type ConfusionMatrix struct {
	Labels [model.NumLabels]string               `json:"labels"`
	Counts [model.NumLabels][model.NumLabels]int `json:"counts"`
}

// Confusion cross-tabulates the predictions of clf on X against y.
func Confusion(clf Classifier, X [][]float64, y []model.Label) (ConfusionMatrix, error) {
	pred, err := predictLabels(clf, X, y)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	return NewConfusion(y, pred), nil
}

// NewConfusion builds the matrix from label slices. Unknown labels are skipped.
func NewConfusion(truth, pred []model.Label) ConfusionMatrix {
	var m ConfusionMatrix
	for i, l := range model.Labels {
		m.Labels[i] = l.String()
	}
	for i := range truth {
		if truth[i].Valid() && pred[i].Valid() {
			m.Counts[truth[i].Index()][pred[i].Index()]++
		}
	}
	return m
}

// Total is the number of counted rows.
func (m ConfusionMatrix) Total() int {
	n := 0
	for _, row := range m.Counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// Text renders the matrix with true labels down and predicted labels across.
func (m ConfusionMatrix) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s", "true\\pred")
	for _, l := range m.Labels {
		fmt.Fprintf(&b, " %11s", l)
	}
	b.WriteByte('\n')
	for i, row := range m.Counts {
		fmt.Fprintf(&b, "%12s", m.Labels[i])
		for _, c := range row {
			fmt.Fprintf(&b, " %11d", c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
