package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jirevwe/workpool/queue"
	"github.com/oklog/ulid/v2"
)

var _ Pool = (*WorkerPool)(nil)

// Stats is a snapshot of a WorkerPool.
type Stats struct {
	Size    int
	Live    int
	Busy    int
	Pending int

	Submitted uint64
	Completed uint64
	Panicked  uint64
}

type WorkerPool struct {
	name string
	size int

	// the work queue; the pool holds the producer side
	queue *queue.Queue[*task]

	workers []*Worker

	// guards closing and abandoned against concurrent submissions
	mu        sync.RWMutex
	closing   bool
	abandoned bool

	// ensure the pool can only be stopped once
	stop sync.Once

	// closed once every worker has been joined
	done chan struct{}

	live      atomic.Int32
	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64

	observer Observer
	log      *slog.Logger
}

// New creates a pool of size workers and starts them. It fails with
// ErrInvalidConfiguration when size is not positive and with ErrSpawnFailure
// when a worker cannot be started; in the latter case the workers already
// started are shut down and joined before New returns.
func New(size int, opts ...Option) (*WorkerPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfiguration, size)
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	p := &WorkerPool{
		name:    o.name,
		size:    size,
		queue:   queue.New[*task](),
		workers: make([]*Worker, 0, size),
		done:    make(chan struct{}),
		log:     o.log.With("pool", o.name),
	}
	// the pool observes itself first so Stats is current for later observers
	p.observer = append(Observers{statsObserver{p}}, o.observers...)

	p.log.Info("starting worker pool", "size", size, "panic_policy", o.policy.String())

	for i := 0; i < size; i++ {
		w := newWorker(i, p.queue.Out(), o.policy, p.observer, p.log, p.workerExited)

		p.live.Add(1)
		if spawnErr := o.spawner.Spawn(i, w.Start); spawnErr != nil {
			p.live.Add(-1)
			p.rollback()
			return nil, fmt.Errorf("%w: worker %d: %w", ErrSpawnFailure, i, spawnErr)
		}

		p.workers = append(p.workers, w)
	}

	return p, nil
}

// rollback stops the workers spawned so far after a spawn failure.
func (p *WorkerPool) rollback() {
	p.log.Error("worker spawn failed, stopping the workers already started", "started", len(p.workers))

	p.mu.Lock()
	p.closing = true
	p.queue.Close()
	p.mu.Unlock()

	p.join()
}

func (p *WorkerPool) Submit(job Job) error {
	_, err := p.SubmitID(job)
	return err
}

func (p *WorkerPool) SubmitID(job Job) (string, error) {
	id := ulid.Make().String()
	if err := p.SubmitAs(id, job); err != nil {
		return "", err
	}
	return id, nil
}

// SubmitAs is Submit with a caller chosen job id, which observers and logs
// will use instead of a generated one.
func (p *WorkerPool) SubmitAs(id string, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	if id == "" {
		return ErrEmptyJobID
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closing {
		return ErrPoolShutDown
	}

	if p.abandoned {
		return ErrNoLiveWorkers
	}

	t := &task{
		id:          id,
		job:         job,
		submittedAt: time.Now(),
	}

	// the job must be announced before any worker can pick it up
	p.observer.JobSubmitted(t.info())

	if err := p.queue.Push(t); err != nil {
		// the queue is only closed with mu held for writing
		return fmt.Errorf("%w: %w", ErrPoolShutDown, err)
	}

	return nil
}

// Shutdown stops accepting jobs and waits until every worker has drained the
// queue and terminated, or until ctx is done. When ctx expires first the
// workers keep draining in the background and Done reports when they are
// finished. Calling Shutdown again after it returned nil is a no-op.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.stop.Do(func() {
		p.log.Info("stopping worker pool")

		// close the queue on which workers receive jobs
		p.mu.Lock()
		p.closing = true
		p.queue.Close()
		p.mu.Unlock()

		go func() {
			p.join()
			p.log.Info("worker pool has been stopped")
		}()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) Close() error {
	return p.Shutdown(context.Background())
}

// join waits for each worker in index order, then for the queue.
func (p *WorkerPool) join() {
	for _, w := range p.workers {
		<-w.Done()
	}
	<-p.queue.Done()
	close(p.done)
}

// Done is closed once Shutdown has joined every worker.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

// workerExited runs on the goroutine of a worker that is about to terminate.
func (p *WorkerPool) workerExited(w *Worker) {
	live := p.live.Add(-1)
	info := w.Info()

	p.observer.WorkerExited(info)

	if !info.Panicked {
		return
	}

	p.log.Warn(fmt.Sprintf("worker %d terminated by a failing job", w.id), "live", live, "size", p.size)

	if live > 0 {
		return
	}

	// nobody is left to drain the queue, so shutdown would never return
	p.mu.Lock()
	p.abandoned = true
	p.mu.Unlock()

	if dropped := p.queue.Abandon(); dropped > 0 {
		p.log.Error("no live workers left, dropping queued jobs", "dropped", dropped)
	}
}

// Size is the number of workers the pool was created with.
func (p *WorkerPool) Size() int {
	return p.size
}

// Live is the number of workers that have not terminated.
func (p *WorkerPool) Live() int {
	return int(p.live.Load())
}

// Workers returns a snapshot of every worker in index order.
func (p *WorkerPool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, len(p.workers))
	for i, w := range p.workers {
		infos[i] = w.Info()
	}
	return infos
}

func (p *WorkerPool) Stats() Stats {
	s := Stats{
		Size:      p.size,
		Live:      p.Live(),
		Pending:   p.queue.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
	for _, w := range p.workers {
		if State(w.state.Load()) == Executing {
			s.Busy++
		}
	}
	return s
}

// statsObserver keeps the pool counters.
type statsObserver struct {
	p *WorkerPool
}

func (s statsObserver) JobSubmitted(JobInfo) {
	s.p.submitted.Add(1)
}

func (s statsObserver) JobStarted(JobInfo) {}

func (s statsObserver) JobFinished(info JobInfo) {
	if info.Panicked() {
		s.p.panicked.Add(1)
		return
	}
	s.p.completed.Add(1)
}

func (s statsObserver) WorkerExited(WorkerInfo) {}
