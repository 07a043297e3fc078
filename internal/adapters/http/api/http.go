// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
)

// SessionHeader carries the session id returned by POST /login.
const SessionHeader = "X-Session-ID"

// IdempotencyHeader makes POST /observations safe to retry.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	SessionDependencies
	PatientDependencies
	DatasetDependencies
	TrainDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	logger         logger.Logger
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	patientHandler *PatientHandler
	datasetHandler *DatasetHandler
	trainHandler   *TrainHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	return &Server{
		logger:         cfg.logger,
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		sessionHandler: NewSessionHandler(deps, cfg.logger),
		patientHandler: NewPatientHandler(deps, cfg.logger),
		datasetHandler: NewDatasetHandler(deps, cfg.logger),
		trainHandler:   NewTrainHandler(deps, cfg.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz", s.logger))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats", s.logger))
	mux.HandleFunc("/login", MetricsMiddleware(s.sessionHandler.HandleLogin, "login", s.logger))
	mux.HandleFunc("/logout", MetricsMiddleware(s.sessionHandler.HandleLogout, "logout", s.logger))
	mux.HandleFunc("/predict", MetricsMiddleware(s.patientHandler.HandlePredict, "predict", s.logger))
	mux.HandleFunc("/observations", MetricsMiddleware(s.patientHandler.HandleInsert, "observations", s.logger))
	mux.HandleFunc("/population", MetricsMiddleware(s.datasetHandler.HandlePopulation, "population", s.logger))
	mux.HandleFunc("/dataset/reload", MetricsMiddleware(s.datasetHandler.HandleReload, "dataset_reload", s.logger))
	mux.HandleFunc("/train", MetricsMiddleware(s.trainHandler.HandleSubmit, "train", s.logger))
	mux.HandleFunc("/train/", MetricsMiddleware(s.trainHandler.HandleJob, "train_job", s.logger))
	mux.HandleFunc("/model", MetricsMiddleware(s.trainHandler.HandleModel, "model", s.logger))
}

type errorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []model.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the JSON error body.
// Server errors are logged; their details are not sent to the client.
func writeError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	code, kind := status(err)
	resp := errorResponse{Code: kind, Message: err.Error()}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		l.Error(ctx, "request failed", logger.Error(err))
		resp.Message = http.StatusText(code)
	}
	writeJSON(w, code, resp)
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// sessionID returns the session header value.
func sessionID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		return "", ErrMissingHeader
	}
	return id, nil
}
