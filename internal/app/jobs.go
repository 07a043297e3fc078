package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/fetalhealth/internal/adapters/mq/queue"
	"github.com/okian/fetalhealth/internal/domain/training"
	"github.com/okian/fetalhealth/internal/domain/types"
	"github.com/okian/fetalhealth/pkg/logger"
	"github.com/okian/fetalhealth/pkg/metrics"
)

const defaultMaxJobs = 50

// jobTracker keeps the state of submitted training jobs. When more than max
// jobs are held, the oldest finished ones are dropped.
type jobTracker struct {
	mu    sync.RWMutex
	jobs  map[string]*types.JobView
	order []string
	max   int
	now   func() time.Time

	logger logger.Logger
}

func newJobTracker(max int, l logger.Logger) *jobTracker {
	if max <= 0 {
		max = defaultMaxJobs
	}
	return &jobTracker{jobs: make(map[string]*types.JobView), max: max, now: time.Now, logger: l}
}

func (t *jobTracker) add(j queue.Job) types.JobView { //nolint:gocritic // hugeParam: Job mirrors the queue payload
	t.mu.Lock()
	defer t.mu.Unlock()

	v := &types.JobView{
		ID:          j.ID,
		User:        j.User,
		State:       types.JobPending,
		Rows:        j.Table.Len(),
		SubmittedAt: j.SubmittedAt,
	}
	t.jobs[j.ID] = v
	t.order = append(t.order, j.ID)
	t.evict()
	t.publish()
	return *v
}

// remove forgets a job that never reached the queue.
func (t *jobTracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.jobs, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.publish()
}

// Started implements worker.Tracker.
func (t *jobTracker) Started(ctx context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.jobs[id]
	if !ok {
		return
	}
	now := t.now()
	v.State, v.StartedAt = types.JobRunning, &now
	t.publish()
}

// Progressed implements worker.Tracker.
func (t *jobTracker) Progressed(id string, done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.jobs[id]; ok {
		v.Progress = types.Progress{Done: done, Total: total}
	}
}

// Finished implements worker.Tracker.
func (t *jobTracker) Finished(ctx context.Context, id string, out *training.Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.jobs[id]
	if !ok {
		t.logger.Warn(ctx, "finished job is no longer tracked", logger.String("job_id", id))
		return
	}
	now := t.now()
	v.FinishedAt = &now
	if err != nil {
		v.State, v.Error = types.JobFailed, err.Error()
	} else {
		v.State, v.Outcome = types.JobSucceeded, out
	}
	t.evict()
	t.publish()
}

func (t *jobTracker) get(id string) (types.JobView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.jobs[id]
	if !ok {
		return types.JobView{}, false
	}
	return *v, true
}

func (t *jobTracker) markSaved(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.jobs[id]; ok {
		v.Saved = true
	}
}

func (t *jobTracker) counts() (int, map[types.JobState]int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs), t.countsLocked()
}

func (t *jobTracker) countsLocked() map[types.JobState]int {
	out := make(map[types.JobState]int, len(types.JobStates))
	for _, s := range types.JobStates {
		out[s] = 0
	}
	for _, v := range t.jobs {
		out[v.State]++
	}
	return out
}

// evict drops the oldest finished jobs beyond max. Pending and running jobs are kept.
func (t *jobTracker) evict() {
	for i := 0; len(t.order) > t.max && i < len(t.order); {
		id := t.order[i]
		if v := t.jobs[id]; v != nil && !v.State.Done() {
			i++
			continue
		}
		delete(t.jobs, id)
		t.order = append(t.order[:i], t.order[i+1:]...)
	}
}

func (t *jobTracker) publish() {
	for s, n := range t.countsLocked() {
		metrics.UpdateJobsByState(string(s), n)
	}
}
