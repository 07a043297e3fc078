package training

import (
	"context"
	"errors"
	"time"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

// Pipeline stages, used in logs and metrics.
const (
	StageSplit    = "split"
	StageSearch   = "search"
	StageBaseline = "baseline"
	StageEvaluate = "evaluate"
	StageSelect   = "select"
)

// Outcome is the result of a completed training run.
type Outcome struct {
	Model          *forest.Forest  `json:"-"`
	Kind           Kind            `json:"kind"`
	Params         forest.Params   `json:"params"`
	Report         Report          `json:"report"`
	Confusion      ConfusionMatrix `json:"confusion"`
	BaselineReport Report          `json:"baseline_report"`
	TunedReport    Report          `json:"tuned_report"`
	CVScore        float64         `json:"cv_score"`
	CVResults      []CVResult      `json:"cv_results"`
	TrainRows      int             `json:"train_rows"`
	EvalRows       int             `json:"eval_rows"`
	Duration       time.Duration   `json:"duration_ns"`
}

// Pipeline runs split, search, baseline, evaluation and selection in order.
// A failure at any stage aborts the run without a selection.
type Pipeline struct {
	opts   []Option
	logger logger.Logger
}

// NewPipeline creates a pipeline. Options apply to every run.
func NewPipeline(opts ...Option) *Pipeline {
	cfg := newConfig(opts)
	l := cfg.logger
	if l == nil {
		l = logger.Get().Named("training")
	}
	return &Pipeline{opts: append(append([]Option{}, opts...), WithLogger(l)), logger: l}
}

// Run trains on table. Extra options, such as WithProgress, apply to this run only.
func (p *Pipeline) Run(ctx context.Context, table model.Table, extra ...Option) (*Outcome, error) {
	opts := append(append([]Option{}, p.opts...), extra...)
	cfg := newConfig(opts)
	start := time.Now()

	out, err := p.run(ctx, cfg, table, opts)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordTrainingRun("failed", elapsed.Seconds())
		metrics.RecordErrorByComponent("training", errorType(err))
		p.logger.Error(ctx, "training run failed", logger.Error(err), logger.Duration("took", elapsed))
		return nil, err
	}
	out.Duration = elapsed
	metrics.RecordTrainingRun("succeeded", elapsed.Seconds())
	p.logger.Info(ctx, "training run finished",
		logger.String("kind", string(out.Kind)),
		logger.String("params", out.Params.String()),
		logger.Float64("macro_f1", out.Report.MacroF1()),
		logger.Duration("took", elapsed))
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, cfg config, table model.Table, opts []Option) (*Outcome, error) {
	stage := p.stageTimer(ctx)

	done := stage(StageSplit)
	split, err := NewSplit(table, model.LabelColumn, opts...)
	done(err, logger.Int("rows", table.Len()))
	if err != nil {
		return nil, err
	}

	done = stage(StageSearch)
	search, err := Search(ctx, split, cfg.grid, opts...)
	done(err, logger.Int("grid_points", cfg.grid.Size()))
	if err != nil {
		return nil, err
	}

	done = stage(StageBaseline)
	baseline, err := TrainBaseline(ctx, split, cfg.baseline, opts...)
	done(err)
	if err != nil {
		return nil, err
	}

	done = stage(StageEvaluate)
	baseReport, err := Evaluate(baseline, split.EvalX, split.EvalY)
	if err != nil {
		done(err)
		return nil, err
	}
	tunedReport, err := Evaluate(search.Model, split.EvalX, split.EvalY)
	done(err)
	if err != nil {
		return nil, err
	}
	metrics.UpdateMacroF1(string(KindBaseline), baseReport.MacroF1())
	metrics.UpdateMacroF1(string(KindTuned), tunedReport.MacroF1())

	done = stage(StageSelect)
	sel, err := Select(
		Candidate{Kind: KindBaseline, Model: baseline, Report: baseReport},
		Candidate{Kind: KindTuned, Model: search.Model, Report: tunedReport},
		split.EvalX, split.EvalY,
	)
	done(err)
	if err != nil {
		return nil, err
	}
	metrics.RecordSelection(string(sel.Winner.Kind))

	winner, params := baseline, cfg.baseline
	if sel.Winner.Kind == KindTuned {
		winner, params = search.Model, search.BestParams
	}
	return &Outcome{
		Model:          winner,
		Kind:           sel.Winner.Kind,
		Params:         params,
		Report:         sel.Winner.Report,
		Confusion:      sel.Confusion,
		BaselineReport: baseReport,
		TunedReport:    tunedReport,
		CVScore:        search.BestScore,
		CVResults:      search.Results,
		TrainRows:      len(split.TrainY),
		EvalRows:       len(split.EvalY),
	}, nil
}

// stageTimer logs and times a stage; the returned func ends it.
func (p *Pipeline) stageTimer(ctx context.Context) func(string) func(error, ...logger.Field) {
	return func(name string) func(error, ...logger.Field) {
		start := time.Now()
		p.logger.Debug(ctx, "stage started", logger.String("stage", name))
		return func(err error, fields ...logger.Field) {
			took := time.Since(start)
			metrics.RecordStageDuration(name, took.Seconds())
			fields = append(fields, logger.String("stage", name), logger.Duration("took", took))
			if err != nil {
				p.logger.Warn(ctx, "stage failed", append(fields, logger.Error(err))...)
				return
			}
			p.logger.Info(ctx, "stage finished", fields...)
		}
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTrainingFailure):
		return "training_failure"
	case contextError(err) != nil:
		return "cancelled"
	default:
		return "unknown"
	}
}
