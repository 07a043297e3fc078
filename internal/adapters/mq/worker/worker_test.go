package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/fetalhealth/internal/adapters/mq/queue"
	worker "github.com/okian/fetalhealth/internal/adapters/mq/worker"
	model "github.com/okian/fetalhealth/internal/domain/model"
	training "github.com/okian/fetalhealth/internal/domain/training"
	logging "github.com/okian/fetalhealth/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(id string) {
	mq.jobs <- queue.Job{ID: id, User: "midwife", Table: model.Table{Columns: model.Columns()}}
}

type mockTrainer struct {
	mu     sync.Mutex
	errs   map[int]error
	calls  int
	block  bool
	points int
}

func (mt *mockTrainer) Run(ctx context.Context, table model.Table, extra ...training.Option) (*training.Outcome, error) {
	mt.mu.Lock()
	mt.calls++
	call := mt.calls
	err := mt.errs[call]
	block := mt.block
	mt.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	report := training.ProgressOf(extra...)
	for i := 1; i <= mt.points; i++ {
		report(i, mt.points)
	}
	return &training.Outcome{Kind: training.KindBaseline, TrainRows: table.Len()}, nil
}

type finished struct {
	out *training.Outcome
	err error
}

type mockTracker struct {
	mu       sync.Mutex
	started  []string
	progress map[string][]int
	finished map[string]finished
	signal   chan string
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		progress: make(map[string][]int),
		finished: make(map[string]finished),
		signal:   make(chan string, 10),
	}
}

func (mt *mockTracker) Started(ctx context.Context, id string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.started = append(mt.started, id)
}

func (mt *mockTracker) Progressed(id string, done, total int) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.progress[id] = append(mt.progress[id], done)
}

func (mt *mockTracker) Finished(ctx context.Context, id string, out *training.Outcome, err error) {
	mt.mu.Lock()
	mt.finished[id] = finished{out: out, err: err}
	mt.mu.Unlock()
	mt.signal <- id
}

func (mt *mockTracker) result(id string) finished {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.finished[id]
}

func waitFor(t *testing.T, tr *mockTracker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-tr.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestWorker(t *testing.T) {
	if err := logging.Init(); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	convey.Convey("Given a worker with a trainer and tracker", t, func() {
		q := newMockQueue()
		trainer := &mockTrainer{errs: map[int]error{}, points: 3}
		tracker := newMockTracker()
		w := worker.NewInMemoryWorker(q, trainer, tracker, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("A successful job is tracked from start to finish", func() {
			q.add("job-1")
			waitFor(t, tracker, 1)

			res := tracker.result("job-1")
			convey.So(res.err, convey.ShouldBeNil)
			convey.So(res.out, convey.ShouldNotBeNil)
			convey.So(res.out.Kind, convey.ShouldEqual, training.KindBaseline)

			tracker.mu.Lock()
			convey.So(tracker.started, convey.ShouldResemble, []string{"job-1"})
			convey.So(tracker.progress["job-1"], convey.ShouldResemble, []int{1, 2, 3})
			tracker.mu.Unlock()
		})

		convey.Convey("A failing job reports its error and the worker keeps going", func() {
			trainer.errs[1] = training.ErrTrainingFailure
			q.add("bad")
			q.add("good")
			waitFor(t, tracker, 2)

			convey.So(errors.Is(tracker.result("bad").err, training.ErrTrainingFailure), convey.ShouldBeTrue)
			convey.So(tracker.result("good").err, convey.ShouldBeNil)
		})

		convey.Convey("Shutdown stops the loop", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	if err := logging.Init(); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	convey.Convey("Given a pool with two workers", t, func() {
		q := newMockQueue()
		trainer := &mockTrainer{errs: map[int]error{}}
		tracker := newMockTracker()
		pool := worker.NewPool(2, q, trainer, tracker)
		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("Every queued job is processed once", func() {
			pool.Start(context.Background())
			for _, id := range []string{"a", "b", "c", "d"} {
				q.add(id)
			}
			waitFor(t, tracker, 4)
			for _, id := range []string{"a", "b", "c", "d"} {
				convey.So(tracker.result(id).err, convey.ShouldBeNil)
			}
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("Shutdown cancels a running job", func() {
			trainer.block = true
			pool.Start(context.Background())
			q.add("long")

			deadline := time.After(2 * time.Second)
			for pool.Busy() == 0 {
				select {
				case <-deadline:
					t.Fatal("job never started")
				case <-time.After(5 * time.Millisecond):
				}
			}
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			waitFor(t, tracker, 1)
			convey.So(errors.Is(tracker.result("long").err, context.Canceled), convey.ShouldBeTrue)
		})

		convey.Convey("A pool that never started shuts down at once", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})

	convey.Convey("A non-positive worker count means one worker", t, func() {
		pool := worker.NewPool(0, newMockQueue(), &mockTrainer{}, newMockTracker())
		convey.So(pool.Size(), convey.ShouldEqual, 1)
	})
}
