package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

// CVResult is the cross-validated score of one grid point.
type CVResult struct {
	Params     forest.Params `json:"params"`
	FoldScores []float64     `json:"fold_scores"`
	Mean       float64       `json:"mean_score"`
	Std        float64       `json:"std_score"`
}

// SearchResult is the outcome of a grid search.
type SearchResult struct {
	Model      *forest.Forest
	BestParams forest.Params
	BestScore  float64
	BestIndex  int
	Results    []CVResult
}

// Search cross-validates every grid point on the training part of split with
// stratified k-fold and macro F1, then refits the best point on the whole
// training part. The best point is the first, in enumeration order, to reach
// the maximum mean score. Any failing fit aborts the search with ErrTrainingFailure.
func Search(ctx context.Context, split Split, grid Grid, opts ...Option) (SearchResult, error) {
	cfg := newConfig(opts)

	points, err := grid.Combinations(cfg.baseline)
	if err != nil {
		return SearchResult{}, err
	}
	folds, err := StratifiedFolds(split.TrainY, cfg.folds)
	if err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{BestIndex: -1, BestScore: math.Inf(-1), Results: make([]CVResult, 0, len(points))}
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}
		cv, err := crossValidate(ctx, cfg, split, folds, p)
		if err != nil {
			return SearchResult{}, err
		}
		res.Results = append(res.Results, cv)
		if cv.Mean > res.BestScore {
			res.BestScore, res.BestIndex, res.BestParams = cv.Mean, i, p
		}
		metrics.RecordGridPoint()
		cfg.progress(i+1, len(points))
		if cfg.logger != nil {
			cfg.logger.Debug(ctx, "grid point scored",
				logger.Int("index", i), logger.String("params", p.String()), logger.Float64("mean_f1", cv.Mean))
		}
	}

	res.Model, err = forest.Fit(ctx, res.BestParams, split.TrainX, codes(split.TrainY), cfg.fitOptions()...)
	if err != nil {
		return SearchResult{}, fitFailure("refit best configuration", err)
	}
	return res, nil
}

func crossValidate(ctx context.Context, cfg config, split Split, folds [][]int, p forest.Params) (CVResult, error) {
	cv := CVResult{Params: p, FoldScores: make([]float64, 0, len(folds))}
	for k := range folds {
		if err := ctx.Err(); err != nil {
			return CVResult{}, err
		}
		trainX, trainY, testX, testY := foldData(split, folds, k)

		start := time.Now()
		f, err := forest.Fit(ctx, p, trainX, codes(trainY), cfg.fitOptions()...)
		if err != nil {
			return CVResult{}, fitFailure(fmt.Sprintf("fold %d of %s", k+1, p), err)
		}
		metrics.RecordCVFit()
		pred, err := predictLabels(f, testX, testY)
		if err != nil {
			return CVResult{}, fitFailure(fmt.Sprintf("score fold %d", k+1), err)
		}
		cv.FoldScores = append(cv.FoldScores, macroF1(testY, pred))
		if cfg.logger != nil {
			cfg.logger.Debug(ctx, "fold fitted", logger.Int("fold", k+1), logger.Duration("took", time.Since(start)))
		}
	}
	cv.Mean, cv.Std = meanStd(cv.FoldScores)
	return cv, nil
}

// fitFailure wraps a fit error as ErrTrainingFailure unless the run was cancelled.
func fitFailure(what string, err error) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", ErrTrainingFailure, what, err)
}

func contextError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// StratifiedFolds assigns every row to one of k test folds so each fold keeps
// roughly the class proportions of y. Rows are not shuffled: within a class,
// rows are dealt to folds in contiguous blocks in their original order.
func StratifiedFolds(y []model.Label, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrInvalidInput, k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("%w: %d training rows cannot fill %d folds", ErrInvalidInput, len(y), k)
	}

	byClass := make(map[model.Label][]int)
	for i, l := range y {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]model.Label, 0, len(byClass))
	for l := range byClass {
		classes = append(classes, l)
	}
	slices.Sort(classes)

	largest := 0
	for _, rows := range byClass {
		largest = max(largest, len(rows))
	}
	if largest < k {
		return nil, fmt.Errorf("%w: no class has at least %d members", ErrInvalidInput, k)
	}

	// Deal the label-sorted rows round-robin to get per-fold class quotas,
	// then hand each class its rows in order following those quotas.
	sorted := make([]model.Label, 0, len(y))
	for _, l := range classes {
		for range byClass[l] {
			sorted = append(sorted, l)
		}
	}
	quota := make([]map[model.Label]int, k)
	for f := range quota {
		quota[f] = make(map[model.Label]int)
		for i := f; i < len(sorted); i += k {
			quota[f][sorted[i]]++
		}
	}

	folds := make([][]int, k)
	for _, l := range classes {
		rows := byClass[l]
		at := 0
		for f := 0; f < k; f++ {
			n := quota[f][l]
			folds[f] = append(folds[f], rows[at:at+n]...)
			at += n
		}
	}
	for f := range folds {
		slices.Sort(folds[f])
	}
	return folds, nil
}

// foldData returns the rows outside and inside fold k, each in row order.
func foldData(split Split, folds [][]int, k int) (trainX [][]float64, trainY []model.Label, testX [][]float64, testY []model.Label) {
	held := make([]bool, len(split.TrainY))
	for _, r := range folds[k] {
		held[r] = true
	}
	for r := range split.TrainY {
		if held[r] {
			testX = append(testX, split.TrainX[r])
			testY = append(testY, split.TrainY[r])
		} else {
			trainX = append(trainX, split.TrainX[r])
			trainY = append(trainY, split.TrainY[r])
		}
	}
	return trainX, trainY, testX, testY
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
