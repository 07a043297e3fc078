// Package forest implements a random-forest classifier of CART trees.
package forest

import (
	"fmt"
	"math"
)

// Params holds the tunable knobs of a forest.
type Params struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"` // 0 means sqrt(features)
	Seed            int64 `json:"seed"`
}

// DefaultParams returns the untuned configuration used as the baseline.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Seed:            42,
	}
}

// Validate rejects parameter values a forest cannot be grown with.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators must be >= 1, got %d", ErrInvalidParams, p.NEstimators)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: max_depth must be >= 0, got %d", ErrInvalidParams, p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("%w: min_samples_split must be >= 2, got %d", ErrInvalidParams, p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be >= 1, got %d", ErrInvalidParams, p.MinSamplesLeaf)
	case p.MaxFeatures < 0:
		return fmt.Errorf("%w: max_features must be >= 0, got %d", ErrInvalidParams, p.MaxFeatures)
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures against the number of columns.
func (p Params) featuresPerSplit(numFeatures int) int {
	m := p.MaxFeatures
	if m == 0 {
		m = int(math.Sqrt(float64(numFeatures)))
	}
	if m < 1 {
		m = 1
	}
	if m > numFeatures {
		m = numFeatures
	}
	return m
}

func (p Params) String() string {
	depth := "None"
	if p.MaxDepth > 0 {
		depth = fmt.Sprint(p.MaxDepth)
	}
	feats := "sqrt"
	if p.MaxFeatures > 0 {
		feats = fmt.Sprint(p.MaxFeatures)
	}
	return fmt.Sprintf("n_estimators=%d max_depth=%s min_samples_split=%d min_samples_leaf=%d max_features=%s",
		p.NEstimators, depth, p.MinSamplesSplit, p.MinSamplesLeaf, feats)
}
