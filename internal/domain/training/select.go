package training

import (
	"fmt"

	"github.com/okian/fetalhealth/internal/domain/model"
)

// Kind names which candidate a model came from.
type Kind string

// Candidate kinds.
const (
	KindBaseline Kind = "baseline"
	KindTuned    Kind = "tuned"
)

// Candidate is a fitted classifier and its held-out report.
type Candidate struct {
	Kind   Kind
	Model  Classifier
	Report Report
}

// Selection is the winning candidate and its confusion matrix.
type Selection struct {
	Winner    Candidate
	Confusion ConfusionMatrix
}

// Select keeps the baseline unless the tuned candidate has a strictly greater
// held-out macro F1. The confusion matrix is computed for the winner only.
func Select(baseline, tuned Candidate, evalX [][]float64, evalY []model.Label) (Selection, error) {
	if baseline.Model == nil || tuned.Model == nil {
		return Selection{}, fmt.Errorf("%w: both candidates need a model", ErrInvalidInput)
	}
	winner := baseline
	if tuned.Report.MacroF1() > baseline.Report.MacroF1() {
		winner = tuned
	}
	cm, err := Confusion(winner.Model, evalX, evalY)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Winner: winner, Confusion: cm}, nil
}
