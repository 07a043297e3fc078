package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/fetalhealth/internal/adapters/artifact"
	"github.com/okian/fetalhealth/internal/adapters/http/api"
	"github.com/okian/fetalhealth/internal/adapters/repository"
	service "github.com/okian/fetalhealth/internal/app"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/population"
	"github.com/okian/fetalhealth/internal/domain/types"
	"github.com/okian/fetalhealth/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies records calls and returns canned results.
type mockDependencies struct {
	loginErr   error
	predictErr error
	insertErr  error
	submitErr  error
	jobErr     error
	saveErr    error
	modelErr   error

	inserted []insertCall
	bins     int
}

type insertCall struct {
	session string
	obs     *model.Observation
	label   model.Label
	key     string
}

func (m *mockDependencies) Login(ctx context.Context, user, password string) (*service.Session, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &service.Session{ID: "sess-1", User: user}, nil
}

func (m *mockDependencies) Logout(ctx context.Context, id string) error {
	if id != "sess-1" {
		return service.ErrSessionNotFound
	}
	return nil
}

func (m *mockDependencies) Predict(ctx context.Context, id string, obs model.Observation) (types.Prediction, error) {
	if m.predictErr != nil {
		return types.Prediction{}, m.predictErr
	}
	if err := obs.Validate(); err != nil {
		return types.Prediction{}, err
	}
	return types.NewPrediction(model.Suspect), nil
}

func (m *mockDependencies) InsertObservation(ctx context.Context, id string, obs *model.Observation, label model.Label, key string) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, insertCall{session: id, obs: obs, label: label, key: key})
	return nil
}

func (m *mockDependencies) ReloadDataset(ctx context.Context, id string) (int, error) {
	return 42, nil
}

func (m *mockDependencies) Population(ctx context.Context, id string, opts ...population.Option) (population.Summary, error) {
	m.bins = len(opts)
	return population.Summary{Total: 42}, nil
}

func (m *mockDependencies) SubmitTraining(ctx context.Context, id string) (types.JobView, error) {
	if m.submitErr != nil {
		return types.JobView{}, m.submitErr
	}
	return types.JobView{ID: "job-1", User: "midwife", State: types.JobPending, Rows: 42}, nil
}

func (m *mockDependencies) Job(ctx context.Context, id string) (types.JobView, error) {
	if m.jobErr != nil {
		return types.JobView{}, m.jobErr
	}
	return types.JobView{ID: id, State: types.JobRunning, Progress: types.Progress{Done: 3, Total: 12}}, nil
}

func (m *mockDependencies) SaveModel(ctx context.Context, id string) (artifact.Info, error) {
	if m.saveErr != nil {
		return artifact.Info{}, m.saveErr
	}
	return artifact.Info{Path: "model.fhs", Kind: "tuned", MacroF1: 0.9}, nil
}

func (m *mockDependencies) ModelInfo(ctx context.Context) (artifact.Info, error) {
	if m.modelErr != nil {
		return artifact.Info{}, m.modelErr
	}
	return artifact.Info{Path: "model.fhs", Kind: "baseline", LoadedAt: time.Now()}, nil
}

func (m *mockDependencies) GetStats(ctx context.Context) types.Stats {
	return types.Stats{ActiveSessions: 1, DatasetRows: 42}
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

const validObservation = `{
	"baseline_value": 132, "accelerations": 0.006, "fetal_movement": 0,
	"uterine_contractions": 0.006, "light_decelerations": 0.003,
	"severe_decelerations": 0, "prolongued_decelerations": 0,
	"abnormal_short_term_variability": 17, "mean_value_of_short_term_variability": 2.1,
	"percentage_of_time_with_abnormal_long_term_variability": 0,
	"mean_value_of_long_term_variability": 10.4, "histogram_width": 130,
	"histogram_min": 68, "histogram_max": 198, "histogram_number_of_peaks": 6,
	"histogram_number_of_zeroes": 1, "histogram_mode": 141, "histogram_mean": 136,
	"histogram_median": 140, "histogram_variance": 12, "histogram_tendency": 0`

func TestServer_Sessions(t *testing.T) {
	Convey("Given the API over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Login returns a session id", func() {
			w := do(mux, http.MethodPost, "/login", `{"username":"midwife","password":"pw"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["session_id"], ShouldEqual, "sess-1")
		})

		Convey("Bad credentials are unauthorized", func() {
			deps.loginErr = fmt.Errorf("login: %w", repository.ErrUnauthorized)
			w := do(mux, http.MethodPost, "/login", `{"username":"midwife","password":"nope"}`)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode(w)["code"], ShouldEqual, "unauthorized")
		})

		Convey("A malformed login body is a bad request", func() {
			So(do(mux, http.MethodPost, "/login", `{"user":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/login", `{"username":"","password":"x"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Logout needs a live session", func() {
			So(do(mux, http.MethodPost, "/logout", "", api.SessionHeader, "sess-1").Code, ShouldEqual, http.StatusNoContent)
			So(do(mux, http.MethodPost, "/logout", "", api.SessionHeader, "other").Code, ShouldEqual, http.StatusUnauthorized)
			So(do(mux, http.MethodPost, "/logout", "").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Wrong methods are not found", func() {
			So(do(mux, http.MethodGet, "/login", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/predict", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/model", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Patients(t *testing.T) {
	Convey("Given the API over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		sess := []string{api.SessionHeader, "sess-1"}

		Convey("Predict returns the label and status message", func() {
			w := do(mux, http.MethodPost, "/predict", validObservation+"}", sess...)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["label"], ShouldEqual, "Suspect")
			So(body["status"], ShouldEqual, "Predicted Fetal Health Status is SUSPECT")
		})

		Convey("Predict without a session is unauthorized", func() {
			So(do(mux, http.MethodPost, "/predict", validObservation+"}").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Predict without a model is unavailable", func() {
			deps.predictErr = artifact.ErrModelUnavailable
			w := do(mux, http.MethodPost, "/predict", validObservation+"}", sess...)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "model_unavailable")
		})

		Convey("Out of range features list the rejected fields", func() {
			body := strings.Replace(validObservation, `"baseline_value": 132`, `"baseline_value": 900`, 1) + "}"
			w := do(mux, http.MethodPost, "/predict", body, sess...)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			fields, ok := decode(w)["fields"].([]any)
			So(ok, ShouldBeTrue)
			So(fields, ShouldHaveLength, 1)
			So(fields[0].(map[string]any)["field"], ShouldEqual, "baseline_value")
		})

		Convey("A prediction request with missing features is rejected", func() {
			w := do(mux, http.MethodPost, "/predict", `{"baseline_value": 120}`, sess...)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decode(w)
			So(body["code"], ShouldEqual, "bad_request")
			fields, ok := body["fields"].([]any)
			So(ok, ShouldBeTrue)
			So(fields, ShouldHaveLength, model.NumFeatures-1)
			So(body["message"], ShouldContainSubstring, "histogram_tendency is required")
		})

		Convey("A feature sent as zero counts as present", func() {
			body := strings.Replace(validObservation, `"histogram_tendency": 0`, `"histogram_tendency": 0.0`, 1) + "}"
			So(do(mux, http.MethodPost, "/predict", body, sess...).Code, ShouldEqual, http.StatusOK)
		})

		Convey("An observation with only some features is not stored", func() {
			w := do(mux, http.MethodPost, "/observations", `{"baseline_value": 120, "fetal_health": 1}`, sess...)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.inserted, ShouldBeEmpty)

			partial := strings.Replace(validObservation, `"fetal_movement": 0,`, "", 1) + `, "fetal_health": 1}`
			w = do(mux, http.MethodPost, "/observations", partial, sess...)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "fetal_movement is required")
			So(deps.inserted, ShouldBeEmpty)
		})

		Convey("An observation with a label is stored", func() {
			w := do(mux, http.MethodPost, "/observations", validObservation+`, "fetal_health": 3}`,
				api.SessionHeader, "sess-1", api.IdempotencyHeader, "k-1")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.inserted, ShouldHaveLength, 1)
			So(deps.inserted[0].obs, ShouldNotBeNil)
			So(deps.inserted[0].obs.BaselineValue, ShouldEqual, 132.0)
			So(deps.inserted[0].label, ShouldEqual, model.Pathologic)
			So(deps.inserted[0].key, ShouldEqual, "k-1")
		})

		Convey("The current patient is stored by label only", func() {
			w := do(mux, http.MethodPost, "/observations", `{"current_patient": true, "fetal_health": "normal"}`, sess...)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.inserted[0].obs, ShouldBeNil)
			So(deps.inserted[0].label, ShouldEqual, model.Normal)
		})

		Convey("An observation without a label is rejected", func() {
			w := do(mux, http.MethodPost, "/observations", validObservation+"}", sess...)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.inserted, ShouldBeEmpty)
		})

		Convey("A replayed idempotency key conflicts", func() {
			deps.insertErr = service.ErrDuplicateRequest
			w := do(mux, http.MethodPost, "/observations", `{"current_patient": true, "fetal_health": 1}`, sess...)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "duplicate")
		})

		Convey("Storing a current patient that does not exist conflicts", func() {
			deps.insertErr = service.ErrNoCurrentPatient
			w := do(mux, http.MethodPost, "/observations", `{"current_patient": true, "fetal_health": 1}`, sess...)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestServer_Dataset(t *testing.T) {
	Convey("Given the API over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		sess := []string{api.SessionHeader, "sess-1"}

		Convey("Population returns the summary", func() {
			w := do(mux, http.MethodGet, "/population?bins=5", "", sess...)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["total"], ShouldEqual, float64(42))
			So(deps.bins, ShouldEqual, 1)
		})

		Convey("An invalid bin count is rejected", func() {
			So(do(mux, http.MethodGet, "/population?bins=zero", "", sess...).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/population?bins=-2", "", sess...).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Reload returns the row count", func() {
			w := do(mux, http.MethodPost, "/dataset/reload", "", sess...)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["rows"], ShouldEqual, float64(42))
		})
	})
}

func TestServer_Training(t *testing.T) {
	Convey("Given the API over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		sess := []string{api.SessionHeader, "sess-1"}

		Convey("Submitting a job is accepted", func() {
			w := do(mux, http.MethodPost, "/train", "", sess...)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(w.Header().Get("Location"), ShouldEqual, "/train/job-1")
			So(decode(w)["job_id"], ShouldEqual, "job-1")
		})

		Convey("A full queue applies backpressure", func() {
			deps.submitErr = service.ErrQueueFull
			So(do(mux, http.MethodPost, "/train", "", sess...).Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("Job state is readable", func() {
			w := do(mux, http.MethodGet, "/train/job-1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["state"], ShouldEqual, "running")
		})

		Convey("An unknown job is not found", func() {
			deps.jobErr = service.ErrJobNotFound
			So(do(mux, http.MethodGet, "/train/nope", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Saving a job that has not succeeded conflicts", func() {
			deps.saveErr = fmt.Errorf("%w: job job-1 is failed", service.ErrJobNotSucceeded)
			So(do(mux, http.MethodPost, "/train/job-1/save", "", sess...).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Saving a succeeded job returns the model info", func() {
			w := do(mux, http.MethodPost, "/train/job-1/save", "", sess...)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["kind"], ShouldEqual, "tuned")
		})

		Convey("A save failure is an internal error without details", func() {
			deps.saveErr = fmt.Errorf("%w: disk full", artifact.ErrPersistenceFailure)
			w := do(mux, http.MethodPost, "/train/job-1/save", "", sess...)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["message"], ShouldEqual, http.StatusText(http.StatusInternalServerError))
		})

		Convey("Malformed job paths are rejected", func() {
			So(do(mux, http.MethodGet, "/train/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/train/a/b/c", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/train/job-1/save", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Model info is served when a model is loaded", func() {
			w := do(mux, http.MethodGet, "/model", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["kind"], ShouldEqual, "baseline")
		})

		Convey("Model info is not found without a model", func() {
			deps.modelErr = artifact.ErrModelUnavailable
			So(do(mux, http.MethodGet, "/model", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("It serves the metrics exposition", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(decode(w)["dataset_rows"], ShouldEqual, float64(42))
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Wrapped errors keep both kind and cause", t, func() {
		err := api.Wrap("api.test", fmt.Errorf("insert: %w", service.ErrQueueFull))
		So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
		So(errors.Is(err, service.ErrQueueFull), ShouldBeTrue)
		So(err.Error(), ShouldStartWith, "api.test: backpressure")

		So(api.Wrap("api.test", nil), ShouldBeNil)
		So(errors.Is(api.NewKind("api.test", api.ErrNotFound), api.ErrNotFound), ShouldBeTrue)
	})
}
