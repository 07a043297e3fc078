package training

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/forest"
)

// Grid axis names.
const (
	AxisNEstimators     = "n_estimators"
	AxisMaxDepth        = "max_depth"
	AxisMinSamplesSplit = "min_samples_split"
	AxisMinSamplesLeaf  = "min_samples_leaf"
	AxisMaxFeatures     = "max_features"
)

var axisSetters = map[string]func(*forest.Params, int){
	AxisNEstimators:     func(p *forest.Params, v int) { p.NEstimators = v },
	AxisMaxDepth:        func(p *forest.Params, v int) { p.MaxDepth = v },
	AxisMinSamplesSplit: func(p *forest.Params, v int) { p.MinSamplesSplit = v },
	AxisMinSamplesLeaf:  func(p *forest.Params, v int) { p.MinSamplesLeaf = v },
	AxisMaxFeatures:     func(p *forest.Params, v int) { p.MaxFeatures = v },
}

// Axis is one hyperparameter and its candidate values.
type Axis struct {
	Name   string `json:"name"`
	Values []int  `json:"values"`
}

// Grid is the set of axes whose Cartesian product is searched.
type Grid []Axis

// DefaultGrid is the search space used for fetal health models.
// max_depth 0 means unlimited.
func DefaultGrid() Grid {
	return Grid{
		{Name: AxisNEstimators, Values: Range(460, 860, 50)},
		{Name: AxisMaxDepth, Values: []int{0}},
		{Name: AxisMinSamplesSplit, Values: []int{2, 8, 14}},
		{Name: AxisMinSamplesLeaf, Values: []int{1}},
	}
}

// Range returns from, from+step, ... up to and including to.
func Range(from, to, step int) []int {
	if step <= 0 || to < from {
		return nil
	}
	out := make([]int, 0, (to-from)/step+1)
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

// Validate rejects unknown, duplicate or empty axes.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("%w: grid has no axes", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(g))
	for _, a := range g {
		if _, ok := axisSetters[a.Name]; !ok {
			return fmt.Errorf("%w: unknown grid axis %q", ErrInvalidInput, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate grid axis %q", ErrInvalidInput, a.Name)
		}
		seen[a.Name] = true
		if len(a.Values) == 0 {
			return fmt.Errorf("%w: grid axis %q has no values", ErrInvalidInput, a.Name)
		}
	}
	return nil
}

// Size is the number of combinations.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, a := range g {
		n *= len(a.Values)
	}
	return n
}

// Combinations enumerates every point of the grid applied on top of base.
// Axes are ordered by name and the last axis varies fastest, so the order is
// independent of how the grid was declared.
func (g Grid) Combinations(base forest.Params) ([]forest.Params, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	axes := slices.Clone(g)
	slices.SortFunc(axes, func(a, b Axis) int { return strings.Compare(a.Name, b.Name) })

	out := make([]forest.Params, 0, g.Size())
	idx := make([]int, len(axes))
	for {
		p := base
		for i, a := range axes {
			axisSetters[a.Name](&p, a.Values[idx[i]])
		}
		out = append(out, p)

		// Odometer increment, last axis first.
		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
