package training

import (
	"context"

	"github.com/okian/fetalhealth/internal/domain/forest"
)

// TrainBaseline fits the untuned configuration on the training part of split.
// It is the control the tuned model has to beat on held-out data.
func TrainBaseline(ctx context.Context, split Split, params forest.Params, opts ...Option) (*forest.Forest, error) {
	cfg := newConfig(opts)
	f, err := forest.Fit(ctx, params, split.TrainX, codes(split.TrainY), cfg.fitOptions()...)
	if err != nil {
		return nil, fitFailure("baseline", err)
	}
	return f, nil
}
