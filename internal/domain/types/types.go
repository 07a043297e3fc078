// Package types contains read shapes shared by the service and its transports.
package types

import (
	"strings"
	"time"

	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/internal/domain/training"
)

// Prediction is the classification of one observation.
type Prediction struct {
	Label   model.Label `json:"label"`
	Code    int         `json:"code"`
	Message string      `json:"status"`
	Color   string      `json:"color"`
	Alert   bool        `json:"alert"`
}

// NewPrediction describes label l. Pathologic results raise an alert.
func NewPrediction(l model.Label) Prediction {
	p := Prediction{
		Label:   l,
		Code:    int(l),
		Message: "Predicted Fetal Health Status is " + strings.ToUpper(l.String()),
	}
	switch l {
	case model.Normal:
		p.Color = "green"
	case model.Suspect:
		p.Color = "yellow"
	case model.Pathologic:
		p.Color, p.Alert = "red", true
	}
	return p
}

// TrainingJob is a request to retrain on a dataset snapshot.
type TrainingJob struct {
	ID          string
	User        string
	Table       model.Table
	SubmittedAt time.Time
}

// JobState is the lifecycle position of a training job.
type JobState string

// Job states. A job moves pending -> running -> succeeded or failed.
const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStates lists every state, in lifecycle order.
var JobStates = []JobState{JobPending, JobRunning, JobSucceeded, JobFailed}

// Done reports whether the job has finished.
func (s JobState) Done() bool { return s == JobSucceeded || s == JobFailed }

// Progress counts evaluated grid points.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// JobView is the externally visible state of a training job.
type JobView struct {
	ID          string            `json:"job_id"`
	User        string            `json:"user"`
	State       JobState          `json:"state"`
	Progress    Progress          `json:"progress"`
	Rows        int               `json:"rows"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Outcome     *training.Outcome `json:"outcome,omitempty"`
	Saved       bool              `json:"saved"`
}

// Stats is a point-in-time summary of the service.
type Stats struct {
	ActiveSessions int              `json:"active_sessions"`
	DatasetRows    int              `json:"dataset_rows"`
	QueueLength    int              `json:"queue_length"`
	Jobs           int              `json:"jobs"`
	JobsByState    map[JobState]int `json:"jobs_by_state"`
	ModelLoaded    bool             `json:"model_loaded"`
	Uptime         string           `json:"uptime"`
	StartedAt      time.Time        `json:"started_at"`
}
