package forest

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Forest is a fitted random forest. All fields are exported so the value can be
// gob-encoded as a model artifact.
type Forest struct {
	Params      Params
	NumFeatures int
	Classes     []int
	Trees       []Tree
}

// Fit grows params.NEstimators trees on bootstrap samples of (X, y).
// Every tree draws from its own seed derived from params.Seed, so the fitted
// forest does not depend on how trees are scheduled across workers.
func Fit(ctx context.Context, params Params, X [][]float64, y []int, opts ...Option) (*Forest, error) {
	cfg := defaultFitConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, ErrEmptyInput
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: rows have no features", ErrShape)
	}
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), width)
		}
	}

	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: found %v", ErrDegenerateLabels, classes)
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i], _ = slices.BinarySearch(classes, label)
	}

	trees := make([]Tree, params.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(treeSeed(params.Seed, i)))
			sample := make([]int, len(X))
			for j := range sample {
				sample[j] = rng.Intn(len(X))
			}
			trees[i] = newGrower(X, encoded, len(classes), params, rng).grow(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Params: params, NumFeatures: width, Classes: classes, Trees: trees}, nil
}

// PredictProba returns, per row, the mean of the leaf class distributions of
// every tree, indexed like Classes.
func (f *Forest) PredictProba(X [][]float64) ([][]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != f.NumFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(x), f.NumFeatures)
		}
		out[i] = f.proba(x)
	}
	return out, nil
}

func (f *Forest) proba(x []float64) []float64 {
	p := make([]float64, len(f.Classes))
	for t := range f.Trees {
		for c, v := range f.Trees[t].leafFor(x).Value {
			p[c] += v
		}
	}
	n := float64(len(f.Trees))
	for c := range p {
		p[c] /= n
	}
	return p
}

// Predict returns the most probable class of every row. Ties go to the lowest class.
func (f *Forest) Predict(X [][]float64) ([]int, error) {
	probs, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		out[i] = f.Classes[argmax(p)]
	}
	return out, nil
}

// PredictOne classifies a single feature vector.
func (f *Forest) PredictOne(x []float64) (int, error) {
	labels, err := f.Predict([][]float64{x})
	if err != nil {
		return 0, err
	}
	return labels[0], nil
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

func uniqueSorted(y []int) []int {
	out := slices.Clone(y)
	slices.Sort(out)
	return slices.Compact(out)
}

// treeSeed mixes the forest seed with the tree index (splitmix64 finalizer).
func treeSeed(seed int64, i int) int64 {
	z := uint64(seed) + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
