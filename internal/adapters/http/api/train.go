package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/fetalhealth/internal/adapters/artifact"
	"github.com/okian/fetalhealth/internal/domain/types"
	"github.com/okian/fetalhealth/pkg/logger"
)

// TrainDependencies defines the interface for training jobs and the served model.
type TrainDependencies interface {
	SubmitTraining(ctx context.Context, sessionID string) (types.JobView, error)
	Job(ctx context.Context, id string) (types.JobView, error)
	SaveModel(ctx context.Context, jobID string) (artifact.Info, error)
	ModelInfo(ctx context.Context) (artifact.Info, error)
}

// TrainHandler handles training and model requests.
type TrainHandler struct {
	deps   TrainDependencies
	logger logger.Logger
}

// NewTrainHandler creates a new train handler.
func NewTrainHandler(deps TrainDependencies, l logger.Logger) *TrainHandler {
	return &TrainHandler{deps: deps, logger: l}
}

// HandleSubmit handles POST /train requests.
func (h *TrainHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_training"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	job, err := h.deps.SubmitTraining(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/train/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// HandleJob handles GET /train/{id} and POST /train/{id}/save requests.
func (h *TrainHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.training_job"
	path := strings.TrimPrefix(r.URL.Path, "/train/")
	jobID, action, _ := strings.Cut(path, "/")
	if jobID == "" || strings.Contains(action, "/") {
		writeError(r.Context(), h.logger, w, NewKind(op, ErrBadRequest))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := h.deps.Job(r.Context(), jobID)
		if err != nil {
			writeError(r.Context(), h.logger, w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, job)
	case action == "save" && r.Method == http.MethodPost:
		if _, err := sessionID(r); err != nil {
			writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
			return
		}
		info, err := h.deps.SaveModel(r.Context(), jobID)
		if err != nil {
			writeError(r.Context(), h.logger, w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, info)
	default:
		http.NotFound(w, r)
	}
}

// HandleModel handles GET /model requests.
func (h *TrainHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	const op = "api.model"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.ModelInfo(r.Context())
	if errors.Is(err, artifact.ErrModelUnavailable) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: Wrap(op, err).Error()})
		return
	}
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}
