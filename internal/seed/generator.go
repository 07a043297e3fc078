// Package seed fills the datastore with observations, either synthetic or
// imported from the public fetal health CSV.
package seed

import (
	"math"
	"math/rand"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// featureProfile is the per-class mean and spread of one feature plus its valid range.
type featureProfile struct {
	mean     [model.NumLabels]float64
	std      [model.NumLabels]float64
	lo, hi   float64
	integral bool
}

// profiles follow model.FeatureNames order. Means and spreads are close to
// the per-class statistics of the public CTG dataset.
var profiles = [model.NumFeatures]featureProfile{
	{mean: [3]float64{132, 142, 131}, std: [3]float64{9, 6, 11}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{0.004, 0.0003, 0.0004}, std: [3]float64{0.004, 0.0006, 0.0008}, lo: 0, hi: 1},
	{mean: [3]float64{0.008, 0.008, 0.025}, std: [3]float64{0.03, 0.03, 0.07}, lo: 0, hi: 1},
	{mean: [3]float64{0.005, 0.002, 0.004}, std: [3]float64{0.003, 0.002, 0.003}, lo: 0, hi: 1},
	{mean: [3]float64{0.002, 0.0004, 0.003}, std: [3]float64{0.003, 0.001, 0.004}, lo: 0, hi: 1},
	{mean: [3]float64{0, 0, 0.00003}, std: [3]float64{0, 0, 0.0002}, lo: 0, hi: 1},
	{mean: [3]float64{0.00005, 0.0001, 0.0016}, std: [3]float64{0.0003, 0.0004, 0.0012}, lo: 0, hi: 1},
	{mean: [3]float64{43, 61, 64}, std: [3]float64{15, 12, 12}, lo: 0, hi: 100, integral: true},
	{mean: [3]float64{1.4, 0.65, 1.6}, std: [3]float64{0.8, 0.4, 1.1}, lo: 0, hi: 100},
	{mean: [3]float64{5, 29, 22}, std: [3]float64{10, 25, 25}, lo: 0, hi: 100, integral: true},
	{mean: [3]float64{8.5, 8.9, 3.5}, std: [3]float64{5, 6, 3}, lo: 0, hi: 100},
	{mean: [3]float64{72, 50, 79}, std: [3]float64{37, 40, 42}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{91, 118, 83}, std: [3]float64{29, 30, 25}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{164, 168, 161}, std: [3]float64{17, 16, 21}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{4, 3, 4.5}, std: [3]float64{3, 3, 3}, lo: 0, hi: 50, integral: true},
	{mean: [3]float64{0.3, 0.2, 0.4}, std: [3]float64{0.7, 0.6, 0.8}, lo: 0, hi: 50, integral: true},
	{mean: [3]float64{138, 148, 115}, std: [3]float64{14, 11, 25}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{136, 145, 113}, std: [3]float64{13, 10, 22}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{139, 148, 120}, std: [3]float64{13, 10, 22}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{17, 7, 41}, std: [3]float64{24, 14, 50}, lo: 0, hi: 500, integral: true},
	{mean: [3]float64{0.35, 0.2, 0.1}, std: [3]float64{0.6, 0.6, 0.7}, lo: -1, hi: 1, integral: true},
}

// Generator produces synthetic labeled observations that pass validation.
// It is not safe for concurrent use.
type Generator struct {
	rng     *rand.Rand
	weights [model.NumLabels]float64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes the generated rows reproducible.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithClassWeights draws labels with the given relative frequencies instead
// of cycling through them. Non-positive totals are ignored.
func WithClassWeights(normal, suspect, pathologic float64) GeneratorOption {
	return func(g *Generator) {
		if normal >= 0 && suspect >= 0 && pathologic >= 0 && normal+suspect+pathologic > 0 {
			g.weights = [model.NumLabels]float64{normal, suspect, pathologic}
		}
	}
}

// NewGenerator creates a generator. Without options, labels cycle
// Normal, Suspect, Pathologic and the seed is 1.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{rng: rand.New(rand.NewSource(1))}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns n labeled observations.
func (g *Generator) Generate(n int) []model.Observation {
	out := make([]model.Observation, n)
	for i := range out {
		out[i] = g.Observation(g.label(i))
	}
	return out
}

func (g *Generator) label(i int) model.Label {
	total := g.weights[0] + g.weights[1] + g.weights[2]
	if total == 0 {
		return model.LabelAt(i % model.NumLabels)
	}
	r := g.rng.Float64() * total
	for k, w := range g.weights {
		if r < w {
			return model.LabelAt(k)
		}
		r -= w
	}
	return model.Pathologic
}

// Observation draws one observation of class l. Unknown labels draw Normal.
func (g *Generator) Observation(l model.Label) model.Observation {
	if !l.Valid() {
		l = model.Normal
	}
	k := l.Index()
	v := make([]float64, model.NumFeatures)
	for i, p := range profiles {
		x := p.mean[k] + g.rng.NormFloat64()*p.std[k]
		if p.integral {
			x = math.Round(x)
		}
		v[i] = math.Min(p.hi, math.Max(p.lo, x))
	}
	o, _ := model.ObservationFromVector(v) // v always has NumFeatures values
	o.Label = l
	return o
}
