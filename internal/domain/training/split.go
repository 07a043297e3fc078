// Package training turns a labeled fetal health table into a selected classifier:
// split, grid search against a baseline, held-out evaluation and selection.
package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// Split is a deterministic train/eval partition of a table.
type Split struct {
	Features []string

	TrainX [][]float64
	TrainY []model.Label
	EvalX  [][]float64
	EvalY  []model.Label

	// Row positions in the source table, in partition order.
	TrainRows []int
	EvalRows  []int
}

// NewSplit holds out round(fraction·N) rows of table for evaluation, chosen by a
// permutation seeded with a fixed value so the same table always yields the
// same partition. Every column except labelColumn is a feature.
func NewSplit(table model.Table, labelColumn string, opts ...Option) (Split, error) {
	cfg := newConfig(opts)

	n := table.Len()
	if n == 0 {
		return Split{}, fmt.Errorf("%w: dataset is empty", ErrInvalidInput)
	}
	labelAt := table.ColumnIndex(labelColumn)
	if labelAt < 0 {
		return Split{}, fmt.Errorf("%w: dataset has no %q column", ErrInvalidInput, labelColumn)
	}

	features := make([]string, 0, len(table.Columns)-1)
	for i, c := range table.Columns {
		if i != labelAt {
			features = append(features, c)
		}
	}
	if len(features) == 0 {
		return Split{}, fmt.Errorf("%w: dataset has no feature columns", ErrInvalidInput)
	}

	X := make([][]float64, n)
	y := make([]model.Label, n)
	for r, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return Split{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidInput, r, len(row), len(table.Columns))
		}
		label, err := model.LabelFromFloat(row[labelAt])
		if err != nil {
			return Split{}, fmt.Errorf("%w: row %d: %w", ErrInvalidInput, r, err)
		}
		x := make([]float64, 0, len(features))
		x = append(x, row[:labelAt]...)
		x = append(x, row[labelAt+1:]...)
		X[r], y[r] = x, label
	}

	nEval := int(math.Round(cfg.testFraction * float64(n)))
	perm := rand.New(rand.NewSource(cfg.seed)).Perm(n)

	s := Split{
		Features:  features,
		EvalRows:  perm[:nEval],
		TrainRows: perm[nEval:],
	}
	s.EvalX, s.EvalY = gather(X, y, s.EvalRows)
	s.TrainX, s.TrainY = gather(X, y, s.TrainRows)
	return s, nil
}

func gather(X [][]float64, y []model.Label, rows []int) ([][]float64, []model.Label) {
	gx := make([][]float64, len(rows))
	gy := make([]model.Label, len(rows))
	for i, r := range rows {
		gx[i], gy[i] = X[r], y[r]
	}
	return gx, gy
}

// codes converts labels to the integer classes the forest is fitted on.
func codes(labels []model.Label) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = int(l)
	}
	return out
}
