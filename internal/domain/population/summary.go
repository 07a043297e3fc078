// Package population summarizes stored observations for the dashboard.
package population

import (
	"math"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// DefaultBins is the number of histogram bins per distribution.
const DefaultBins = 10

// DashboardFeatures are the features plotted per status on the dashboard.
var DashboardFeatures = []string{"accelerations", "baseline_value", "prolongued_decelerations"}

// ClassShare is the count and percentage of one status.
type ClassShare struct {
	Label   model.Label `json:"label"`
	Count   int         `json:"count"`
	Percent float64     `json:"percent"`
}

// FeatureStats are descriptive statistics of one feature.
type FeatureStats struct {
	Feature string  `json:"feature"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Histogram counts feature values in equal-width bins shared by every status.
type Histogram struct {
	Feature string                `json:"feature"`
	Edges   []float64             `json:"edges"`
	Counts  map[model.Label][]int `json:"counts"`
}

// Correlation is the Pearson correlation of every column pair.
type Correlation struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Summary is the dashboard view of a dataset.
type Summary struct {
	Total         int                            `json:"total"`
	Classes       []ClassShare                   `json:"classes"`
	Overall       []FeatureStats                 `json:"overall"`
	ByClass       map[model.Label][]FeatureStats `json:"by_class"`
	Distributions []Histogram                    `json:"distributions"`
	Correlation   Correlation                    `json:"correlation"`
}

// Option configures Summarize.
type Option func(*config)

type config struct {
	bins int
}

// WithBins sets the number of histogram bins.
func WithBins(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bins = n
		}
	}
}

// Summarize computes class shares, per-class feature statistics, the
// distributions of the dashboard features and the correlation matrix over
// features and label. Observations without a valid label only count in Overall.
func Summarize(obs []model.Observation, opts ...Option) Summary {
	cfg := config{bins: DefaultBins}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := Summary{Total: len(obs), ByClass: make(map[model.Label][]FeatureStats, model.NumLabels)}
	vectors := make([][]float64, len(obs))
	byClass := make(map[model.Label][][]float64, model.NumLabels)
	for i := range obs {
		vectors[i] = obs[i].Vector()
		if obs[i].Label.Valid() {
			byClass[obs[i].Label] = append(byClass[obs[i].Label], vectors[i])
		}
	}

	for _, l := range model.Labels {
		share := ClassShare{Label: l, Count: len(byClass[l])}
		if s.Total > 0 {
			share.Percent = 100 * float64(share.Count) / float64(s.Total)
		}
		s.Classes = append(s.Classes, share)
		s.ByClass[l] = describe(byClass[l])
	}
	s.Overall = describe(vectors)

	for _, name := range DashboardFeatures {
		s.Distributions = append(s.Distributions, histogram(name, model.FeatureIndex(name), vectors, byClass, cfg.bins))
	}
	s.Correlation = correlate(obs)
	return s
}

func describe(rows [][]float64) []FeatureStats {
	out := make([]FeatureStats, model.NumFeatures)
	for j, name := range model.FeatureNames {
		col := column(rows, j)
		st := FeatureStats{Feature: name, Count: len(col)}
		if len(col) > 0 {
			st.Min, st.Max = col[0], col[0]
			for _, v := range col {
				st.Min = math.Min(st.Min, v)
				st.Max = math.Max(st.Max, v)
			}
			st.Mean, st.Std = meanStd(col)
		}
		out[j] = st
	}
	return out
}

func histogram(name string, j int, all [][]float64, byClass map[model.Label][][]float64, bins int) Histogram {
	h := Histogram{Feature: name, Counts: make(map[model.Label][]int, model.NumLabels)}
	col := column(all, j)
	if len(col) == 0 {
		return h
	}
	lo, hi := col[0], col[0]
	for _, v := range col {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)
	h.Edges = make([]float64, bins+1)
	for b := range h.Edges {
		h.Edges[b] = lo + float64(b)*width
	}
	for _, l := range model.Labels {
		counts := make([]int, bins)
		for _, v := range column(byClass[l], j) {
			b := int((v - lo) / width)
			if b >= bins {
				b = bins - 1
			}
			counts[b]++
		}
		h.Counts[l] = counts
	}
	return h
}

// correlate uses sample Pearson correlation; constant columns correlate as 0
// with everything else and 1 with themselves.
func correlate(obs []model.Observation) Correlation {
	cols := model.Columns()
	rows := make([][]float64, len(obs))
	for i := range obs {
		rows[i] = obs[i].Row()
	}
	c := Correlation{Columns: cols, Values: make([][]float64, len(cols))}
	series := make([][]float64, len(cols))
	for j := range cols {
		series[j] = column(rows, j)
	}
	for a := range cols {
		c.Values[a] = make([]float64, len(cols))
		for b := range cols {
			if a == b {
				c.Values[a][b] = 1
				continue
			}
			c.Values[a][b] = pearson(series[a], series[b])
		}
	}
	return c
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	mx, _ := meanStd(x)
	my, _ := meanStd(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}

// meanStd returns the mean and the sample standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range xs {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
