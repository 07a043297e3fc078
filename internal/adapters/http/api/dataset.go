package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/fetalhealth/internal/domain/population"
	"github.com/okian/fetalhealth/pkg/logger"
)

// DatasetDependencies defines the interface for the session dataset.
type DatasetDependencies interface {
	ReloadDataset(ctx context.Context, sessionID string) (int, error)
	Population(ctx context.Context, sessionID string, opts ...population.Option) (population.Summary, error)
}

// DatasetHandler handles population and reload requests.
type DatasetHandler struct {
	deps   DatasetDependencies
	logger logger.Logger
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(deps DatasetDependencies, l logger.Logger) *DatasetHandler {
	return &DatasetHandler{deps: deps, logger: l}
}

type reloadResponse struct {
	Rows int `json:"rows"`
}

// HandlePopulation handles GET /population requests. The optional bins query
// parameter sets the histogram resolution.
func (h *DatasetHandler) HandlePopulation(w http.ResponseWriter, r *http.Request) {
	const op = "api.population"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	var opts []population.Option
	if s := r.URL.Query().Get("bins"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(r.Context(), h.logger, w, NewKind(op, ErrBadRequest))
			return
		}
		opts = append(opts, population.WithBins(n))
	}
	sum, err := h.deps.Population(r.Context(), id, opts...)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleReload handles POST /dataset/reload requests.
func (h *DatasetHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload_dataset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	n, err := h.deps.ReloadDataset(r.Context(), id)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{Rows: n})
}
