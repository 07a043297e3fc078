package training_test

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/training"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// syntheticTable returns n rows over the 21 feature columns plus the label.
// Classes cycle 1, 2, 3 so they stay balanced; the first feature separates them.
func syntheticTable(n int, seed int64) model.Table {
	rng := rand.New(rand.NewSource(seed))
	t := model.Table{Columns: model.Columns(), Rows: make([][]float64, n)}
	for i := range t.Rows {
		label := i%3 + 1
		row := make([]float64, model.NumFeatures+1)
		row[0] = 110 + float64(label)*10 + rng.NormFloat64()
		for j := 1; j < model.NumFeatures; j++ {
			row[j] = rng.Float64()
		}
		row[model.NumFeatures] = float64(label)
		t.Rows[i] = row
	}
	return t
}

func singleClassTable(n int) model.Table {
	t := syntheticTable(n, 1)
	for _, row := range t.Rows {
		row[model.NumFeatures] = float64(model.Normal)
	}
	return t
}

func fastParams() forest.Params {
	p := forest.DefaultParams()
	p.NEstimators = 8
	return p
}

// equalGrid has exactly one point, identical to fastParams.
func equalGrid() training.Grid {
	return training.Grid{
		{Name: training.AxisNEstimators, Values: []int{8}},
		{Name: training.AxisMaxDepth, Values: []int{0}},
		{Name: training.AxisMinSamplesSplit, Values: []int{2}},
		{Name: training.AxisMinSamplesLeaf, Values: []int{1}},
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	table := syntheticTable(57, 3)
	a, err := training.NewSplit(table, model.LabelColumn)
	require.NoError(t, err)
	b, err := training.NewSplit(table, model.LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplitSizesAndDisjointness(t *testing.T) {
	for _, n := range []int{10, 11, 13, 37, 100, 2126} {
		table := syntheticTable(n, int64(n))
		s, err := training.NewSplit(table, model.LabelColumn)
		require.NoError(t, err)

		wantEval := int(math.Round(0.2 * float64(n)))
		assert.Len(t, s.EvalY, wantEval, "n=%d", n)
		assert.Len(t, s.TrainY, n-wantEval, "n=%d", n)
		assert.Len(t, s.EvalX, wantEval)
		assert.Len(t, s.TrainX, n-wantEval)

		seen := make(map[int]bool, n)
		for _, r := range append(append([]int{}, s.TrainRows...), s.EvalRows...) {
			assert.False(t, seen[r], "row %d used twice", r)
			seen[r] = true
		}
		assert.Len(t, seen, n)
	}
}

func TestSplitDropsLabelColumn(t *testing.T) {
	table := syntheticTable(20, 1)
	s, err := training.NewSplit(table, model.LabelColumn)
	require.NoError(t, err)
	assert.Len(t, s.Features, model.NumFeatures)
	assert.NotContains(t, s.Features, model.LabelColumn)
	for i, r := range s.EvalRows {
		assert.Len(t, s.EvalX[i], model.NumFeatures)
		assert.Equal(t, table.Rows[r][0], s.EvalX[i][0])
		assert.Equal(t, model.Label(table.Rows[r][model.NumFeatures]), s.EvalY[i])
	}
}

func TestSplitOptions(t *testing.T) {
	table := syntheticTable(50, 1)
	a, err := training.NewSplit(table, model.LabelColumn, training.WithTestFraction(0.3), training.WithSeed(7))
	require.NoError(t, err)
	assert.Len(t, a.EvalY, 15)
	b, err := training.NewSplit(table, model.LabelColumn, training.WithTestFraction(0.3))
	require.NoError(t, err)
	assert.NotEqual(t, a.EvalRows, b.EvalRows)
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	_, err := training.NewSplit(model.Table{Columns: model.Columns()}, model.LabelColumn)
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	_, err = training.NewSplit(syntheticTable(10, 1), "status")
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	bad := syntheticTable(10, 1)
	bad.Rows[4][model.NumFeatures] = 7
	_, err = training.NewSplit(bad, model.LabelColumn)
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}

func TestGridEnumerationOrder(t *testing.T) {
	points, err := training.DefaultGrid().Combinations(forest.DefaultParams())
	require.NoError(t, err)
	require.Len(t, points, 27)

	// n_estimators is the last axis by name, so it varies fastest.
	assert.Equal(t, 460, points[0].NEstimators)
	assert.Equal(t, 2, points[0].MinSamplesSplit)
	assert.Equal(t, 510, points[1].NEstimators)
	assert.Equal(t, 860, points[8].NEstimators)
	assert.Equal(t, 460, points[9].NEstimators)
	assert.Equal(t, 8, points[9].MinSamplesSplit)
	assert.Equal(t, 14, points[26].MinSamplesSplit)
	for _, p := range points {
		assert.Equal(t, 0, p.MaxDepth)
		assert.Equal(t, 1, p.MinSamplesLeaf)
		assert.Equal(t, int64(42), p.Seed)
	}
}

func TestGridOrderIgnoresDeclarationOrder(t *testing.T) {
	g := training.DefaultGrid()
	reversed := make(training.Grid, len(g))
	for i := range g {
		reversed[len(g)-1-i] = g[i]
	}
	a, err := g.Combinations(forest.DefaultParams())
	require.NoError(t, err)
	b, err := reversed.Combinations(forest.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGridValidation(t *testing.T) {
	_, err := training.Grid{}.Combinations(forest.DefaultParams())
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	_, err = training.Grid{{Name: "learning_rate", Values: []int{1}}}.Combinations(forest.DefaultParams())
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	_, err = training.Grid{{Name: training.AxisMaxDepth}}.Combinations(forest.DefaultParams())
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	dup := training.Grid{
		{Name: training.AxisMaxDepth, Values: []int{1}},
		{Name: training.AxisMaxDepth, Values: []int{2}},
	}
	assert.ErrorIs(t, dup.Validate(), training.ErrInvalidInput)

	assert.Equal(t, []int{460, 510, 560, 610, 660, 710, 760, 810, 860}, training.Range(460, 860, 50))
}

func TestStratifiedFolds(t *testing.T) {
	y := make([]model.Label, 0, 15)
	for i := 0; i < 10; i++ {
		y = append(y, model.Normal)
	}
	for i := 0; i < 5; i++ {
		y = append(y, model.Suspect)
	}

	folds, err := training.StratifiedFolds(y, 5)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := map[int]bool{}
	for _, fold := range folds {
		counts := map[model.Label]int{}
		for _, r := range fold {
			assert.False(t, seen[r])
			seen[r] = true
			counts[y[r]]++
		}
		assert.Equal(t, 2, counts[model.Normal])
		assert.Equal(t, 1, counts[model.Suspect])
	}
	assert.Len(t, seen, len(y))

	// Without shuffling, the first rows of each class land in the first fold.
	assert.Equal(t, []int{0, 1, 10}, folds[0])

	_, err = training.StratifiedFolds(y[:4], 5)
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}

func TestReportHandComputed(t *testing.T) {
	truth := []model.Label{1, 1, 2, 2, 3, 3}
	pred := []model.Label{1, 2, 2, 2, 3, 1}
	r := training.NewReport(truth, pred)

	normal, ok := r.Class(model.Normal)
	require.True(t, ok)
	assert.InDelta(t, 0.5, normal.Precision, 1e-12)
	assert.InDelta(t, 0.5, normal.Recall, 1e-12)
	assert.InDelta(t, 0.5, normal.F1, 1e-12)

	suspect, _ := r.Class(model.Suspect)
	assert.InDelta(t, 2.0/3.0, suspect.Precision, 1e-12)
	assert.InDelta(t, 1.0, suspect.Recall, 1e-12)
	assert.InDelta(t, 0.8, suspect.F1, 1e-12)

	patho, _ := r.Class(model.Pathologic)
	assert.InDelta(t, 1.0, patho.Precision, 1e-12)
	assert.InDelta(t, 0.5, patho.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, patho.F1, 1e-12)

	assert.InDelta(t, 4.0/6.0, r.Accuracy, 1e-12)
	assert.InDelta(t, (0.5+0.8+2.0/3.0)/3, r.Macro().F1, 1e-12)
	assert.InDelta(t, r.Macro().F1, r.Weighted().F1, 1e-12)
	assert.Equal(t, 6, r.Macro().Support)
	assert.Equal(t, 6, r.Total)

	_, ok = r.Class(model.Label(0))
	assert.False(t, ok)
}

func TestReportZeroDivision(t *testing.T) {
	r := training.NewReport([]model.Label{1, 1}, []model.Label{1, 1})
	assert.InDelta(t, 1.0, r.MacroF1(), 1e-12)
	suspect, _ := r.Class(model.Suspect)
	assert.Equal(t, training.ClassMetrics{Label: model.Suspect}, suspect)

	// A label seen only in predictions still counts towards the macro average.
	r = training.NewReport([]model.Label{1, 1}, []model.Label{1, 2})
	assert.InDelta(t, (2.0/3.0)/2, r.MacroF1(), 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Weighted().F1, 1e-12)
	assert.Equal(t, 2, r.Weighted().Support)
}

func TestReportBoundsAndSupport(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(60)
		truth := make([]model.Label, n)
		pred := make([]model.Label, n)
		for i := range truth {
			truth[i] = model.LabelAt(rng.Intn(3))
			pred[i] = model.LabelAt(rng.Intn(3))
		}
		r := training.NewReport(truth, pred)
		support := 0
		for _, c := range r.Classes {
			for _, v := range []float64{c.Precision, c.Recall, c.F1} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
			support += c.Support
		}
		assert.Equal(t, n, support)
		assert.GreaterOrEqual(t, r.MacroF1(), 0.0)
		assert.LessOrEqual(t, r.MacroF1(), 1.0)
	}
}

func TestReportJSONAndText(t *testing.T) {
	r := training.NewReport([]model.Label{1, 2, 3}, []model.Label{1, 2, 2})
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"Normal", "Suspect", "Pathologic", "accuracy", "macro avg", "weighted avg"} {
		assert.Contains(t, m, k)
	}
	var normal map[string]float64
	require.NoError(t, json.Unmarshal(m["Normal"], &normal))
	assert.Equal(t, map[string]float64{"precision": 1, "recall": 1, "f1-score": 1, "support": 1}, normal)

	text := r.Text()
	assert.Contains(t, text, "precision")
	assert.Contains(t, text, "Pathologic")
	assert.Contains(t, text, "weighted avg")
}

// constant predicts the same class for every row.
type constant int

func (c constant) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i := range out {
		out[i] = int(c)
	}
	return out, nil
}

func TestEvaluate(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []model.Label{1, 1, 2, 3}
	X0 := append([][]float64{}, X...)
	y0 := append([]model.Label{}, y...)

	r, err := training.Evaluate(constant(1), X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Accuracy, 1e-12)
	assert.Equal(t, X0, X)
	assert.Equal(t, y0, y)

	_, err = training.Evaluate(constant(1), nil, nil)
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	cm, err := training.Confusion(constant(2), X, y)
	require.NoError(t, err)
	assert.Equal(t, [3][3]int{{0, 2, 0}, {0, 1, 0}, {0, 1, 0}}, cm.Counts)
	assert.Equal(t, 4, cm.Total())
	assert.Contains(t, cm.Text(), "Suspect")
}

func TestSelectPrefersBaselineOnTie(t *testing.T) {
	X := [][]float64{{1}, {2}}
	y := []model.Label{1, 2}
	report := func(f1 float64) training.Report {
		var r training.Report
		r.MacroAvg.F1 = f1
		return r
	}

	cases := []struct {
		name     string
		base     float64
		tuned    float64
		expected training.Kind
	}{
		{"tie", 0.8, 0.8, training.KindBaseline},
		{"tuned worse", 0.8, 0.7, training.KindBaseline},
		{"tuned better", 0.8, 0.8000001, training.KindTuned},
		{"both zero", 0, 0, training.KindBaseline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := training.Select(
				training.Candidate{Kind: training.KindBaseline, Model: constant(1), Report: report(tc.base)},
				training.Candidate{Kind: training.KindTuned, Model: constant(2), Report: report(tc.tuned)},
				X, y,
			)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sel.Winner.Kind)
			winnerClass := 0
			if tc.expected == training.KindTuned {
				winnerClass = 1
			}
			assert.Equal(t, 2, sel.Confusion.Counts[0][winnerClass]+sel.Confusion.Counts[1][winnerClass])
		})
	}
}

func TestSearchPicksFirstMaximum(t *testing.T) {
	s, err := training.NewSplit(syntheticTable(60, 2), model.LabelColumn)
	require.NoError(t, err)

	// Both points are the same configuration, so both score the same.
	grid := training.Grid{{Name: training.AxisNEstimators, Values: []int{5, 5}}}
	var calls []int
	res, err := training.Search(context.Background(), s, grid,
		training.WithBaselineParams(fastParams()),
		training.WithProgress(func(done, total int) {
			assert.Equal(t, 2, total)
			calls = append(calls, done)
		}))
	require.NoError(t, err)

	assert.Equal(t, 0, res.BestIndex)
	require.Len(t, res.Results, 2)
	assert.Equal(t, res.Results[0].Mean, res.Results[1].Mean)
	assert.Equal(t, res.Results[0].Mean, res.BestScore)
	assert.Len(t, res.Results[0].FoldScores, training.DefaultFolds)
	assert.Equal(t, []int{1, 2}, calls)
	require.NotNil(t, res.Model)
	assert.Len(t, res.Model.Trees, 5)
}

func TestSearchFailsOnSingleClassFold(t *testing.T) {
	s, err := training.NewSplit(singleClassTable(40), model.LabelColumn)
	require.NoError(t, err)
	_, err = training.Search(context.Background(), s, equalGrid(), training.WithBaselineParams(fastParams()))
	assert.ErrorIs(t, err, training.ErrTrainingFailure)
	assert.ErrorIs(t, err, forest.ErrDegenerateLabels)
}

func TestSearchRejectsTooFewRows(t *testing.T) {
	s, err := training.NewSplit(syntheticTable(5, 1), model.LabelColumn)
	require.NoError(t, err)
	_, err = training.Search(context.Background(), s, equalGrid())
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}

func TestSearchStopsWhenCancelled(t *testing.T) {
	s, err := training.NewSplit(syntheticTable(30, 1), model.LabelColumn)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = training.Search(ctx, s, equalGrid())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, training.ErrTrainingFailure)
}

func TestBaselineFailure(t *testing.T) {
	s, err := training.NewSplit(singleClassTable(20), model.LabelColumn)
	require.NoError(t, err)
	_, err = training.TrainBaseline(context.Background(), s, fastParams())
	assert.ErrorIs(t, err, training.ErrTrainingFailure)
}

func TestPipelineHundredRowScenario(t *testing.T) {
	p := training.NewPipeline(
		training.WithGrid(equalGrid()),
		training.WithBaselineParams(fastParams()),
		training.WithWorkers(2),
	)
	out, err := p.Run(context.Background(), syntheticTable(100, 5))
	require.NoError(t, err)

	assert.Equal(t, 80, out.TrainRows)
	assert.Equal(t, 20, out.EvalRows)
	assert.Equal(t, training.KindBaseline, out.Kind)
	assert.Equal(t, fastParams(), out.Params)
	assert.Equal(t, out.BaselineReport, out.TunedReport)
	assert.Equal(t, out.BaselineReport, out.Report)
	assert.Equal(t, 20, out.Confusion.Total())
	assert.Equal(t, 20, out.Report.Total)
	require.NotNil(t, out.Model)
	assert.Len(t, out.Model.Trees, 8)
	assert.Greater(t, out.Duration.Nanoseconds(), int64(0))
}

func TestPipelineAbortsOnSingleClassData(t *testing.T) {
	p := training.NewPipeline(training.WithGrid(equalGrid()), training.WithBaselineParams(fastParams()))
	out, err := p.Run(context.Background(), singleClassTable(50))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, training.ErrTrainingFailure)
}

func TestPipelineRejectsEmptyTable(t *testing.T) {
	p := training.NewPipeline(training.WithGrid(equalGrid()))
	_, err := p.Run(context.Background(), model.Table{Columns: model.Columns()})
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}
