package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/types"
	"github.com/okian/fetalhealth/pkg/logger"
)

// PatientDependencies defines the interface for classifying and storing cases.
type PatientDependencies interface {
	Predict(ctx context.Context, sessionID string, obs model.Observation) (types.Prediction, error)
	InsertObservation(ctx context.Context, sessionID string, obs *model.Observation, label model.Label, idempotencyKey string) error
}

// PatientHandler handles prediction and observation requests.
type PatientHandler struct {
	deps   PatientDependencies
	logger logger.Logger
}

// NewPatientHandler creates a new patient handler.
func NewPatientHandler(deps PatientDependencies, l logger.Logger) *PatientHandler {
	return &PatientHandler{deps: deps, logger: l}
}

// observationRequest is an observation with its confirmed label. With
// current_patient set the features are ignored and the last predicted
// observation of the session is stored under fetal_health.
type observationRequest struct {
	model.ObservationInput
	CurrentPatient bool `json:"current_patient,omitempty"`
}

type insertResponse struct {
	Status string      `json:"status"`
	Label  model.Label `json:"fetal_health"`
}

// HandlePredict handles POST /predict requests.
func (h *PatientHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	var in model.ObservationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	obs, err := in.Observation()
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.Predict(r.Context(), id, obs)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleInsert handles POST /observations requests.
func (h *PatientHandler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.insert_observation"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	var req observationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if !req.Label.Valid() {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, model.ErrMissingLabelValue))
		return
	}

	var obs *model.Observation
	if !req.CurrentPatient {
		o, err := req.ObservationInput.Observation()
		if err != nil {
			writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
			return
		}
		obs = &o
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if err := h.deps.InsertObservation(r.Context(), id, obs, req.Label, key); err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, insertResponse{Status: "stored", Label: req.Label})
}
