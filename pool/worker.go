package pool

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// WorkerInfo is a snapshot of a Worker.
type WorkerInfo struct {
	ID       int
	State    State
	JobsRun  uint64
	Panicked bool
}

// Worker owns one execution context and runs jobs from the shared queue one at
// a time until the queue reports that no more jobs will arrive.
type Worker struct {
	// the worker id, in [0, size)
	id int

	// channel from which the worker consumes work
	tasks <-chan *task

	// closed when the worker has terminated
	done chan struct{}

	state    atomic.Int32
	jobsRun  atomic.Uint64
	panicked atomic.Bool

	policy   PanicPolicy
	observer Observer
	log      *slog.Logger

	// used to tell the pool the worker is gone
	onExit func(*Worker)
}

func newWorker(id int, tasks <-chan *task, policy PanicPolicy, observer Observer, log *slog.Logger, onExit func(*Worker)) *Worker {
	return &Worker{
		id:       id,
		tasks:    tasks,
		done:     make(chan struct{}),
		policy:   policy,
		observer: observer,
		log:      log.With("worker", id),
		onExit:   onExit,
	}
}

// Start runs the worker loop on the calling goroutine.
func (w *Worker) Start() {
	w.log.Debug(fmt.Sprintf("starting worker %d", w.id))

	defer func() {
		w.state.Store(int32(Terminated))
		if w.onExit != nil {
			w.onExit(w)
		}
		close(w.done)
	}()

	for t := range w.tasks {
		if !w.execute(t) {
			return
		}
	}

	w.log.Info(fmt.Sprintf("worker %d disconnected; shutting down", w.id))
}

// execute runs one job and reports whether the worker should keep going.
func (w *Worker) execute(t *task) (alive bool) {
	info := t.info()
	info.Worker = w.id
	info.StartedAt = time.Now()

	w.state.Store(int32(Executing))

	finished := false
	defer func() {
		info.FinishedAt = time.Now()
		w.jobsRun.Add(1)

		r := recover()
		exited := r == nil && !finished
		if exited {
			// runtime.Goexit: the goroutine is unwinding and cannot be kept
			r = ErrJobExited
		}

		if r == nil {
			w.observer.JobFinished(info)
			w.state.Store(int32(Running))
			alive = true
			return
		}

		info.Panic = r
		info.Stack = debug.Stack()
		w.log.Error("job panicked",
			"job", t.id,
			"panic", fmt.Sprint(r),
			"policy", w.policy.String(),
			"stack", string(info.Stack))
		w.observer.JobFinished(info)

		if exited || w.policy == PanicTerminate {
			w.panicked.Store(true)
			alive = false
			return
		}

		w.state.Store(int32(Running))
		alive = true
	}()

	// observers run under the same recover as the job
	w.observer.JobStarted(info)
	t.job()
	finished = true

	return true
}

// Info returns a snapshot of the worker.
func (w *Worker) Info() WorkerInfo {
	return WorkerInfo{
		ID:       w.id,
		State:    State(w.state.Load()),
		JobsRun:  w.jobsRun.Load(),
		Panicked: w.panicked.Load(),
	}
}

// Done is closed once the worker has terminated.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
