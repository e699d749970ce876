// Package journal records the lifecycle of every job run by a pool into a
// sqlite database.
//
// A Journal is a pool.Observer. Pool callbacks only hand events to a buffered
// channel; one background loop writes them to the Store in the order they
// were received, so journaling never slows down job submission or execution.
// When the buffer is full the event is dropped and counted.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jirevwe/workpool/pool"
)

var ErrClosed = errors.New("journal is closed")

var _ pool.Observer = (*Journal)(nil)

type eventKind int

const (
	jobSubmitted eventKind = iota
	jobStarted
	jobFinished
)

type event struct {
	kind eventKind
	job  pool.JobInfo
}

type Journal struct {
	pool.NopObserver

	name   string
	store  *Store
	logger *slog.Logger

	events chan event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

type Option func(*Journal)

// WithBuffer sets how many events may wait for the writer. The default is 1024.
func WithBuffer(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.events = make(chan event, n)
		}
	}
}

// WithPoolName sets the pool column of the records. The default is "workpool".
func WithPoolName(name string) Option {
	return func(j *Journal) {
		j.name = name
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// New starts a journal writing to store. The caller keeps ownership of store
// and must Close the journal before closing it.
func New(store *Store, opts ...Option) *Journal {
	j := &Journal{
		name:   "workpool",
		store:  store,
		logger: slog.Default(),
		events: make(chan event, 1024),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	go j.run()

	return j
}

func (j *Journal) JobSubmitted(info pool.JobInfo) { j.enqueue(event{kind: jobSubmitted, job: info}) }
func (j *Journal) JobStarted(info pool.JobInfo)   { j.enqueue(event{kind: jobStarted, job: info}) }
func (j *Journal) JobFinished(info pool.JobInfo)  { j.enqueue(event{kind: jobFinished, job: info}) }

func (j *Journal) enqueue(ev event) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		return
	}

	select {
	case j.events <- ev:
	default:
		j.dropped.Add(1)
		j.logger.Warn("journal buffer is full, dropping event", "job", ev.job.ID)
	}
}

func (j *Journal) run() {
	defer close(j.done)

	ctx := context.Background()
	for ev := range j.events {
		if err := j.write(ctx, ev); err != nil {
			j.failed.Add(1)
			j.logger.Error(err.Error(), "source", "journal", "job", ev.job.ID)
			continue
		}
		j.written.Add(1)
	}
}

func (j *Journal) write(ctx context.Context, ev event) error {
	info := ev.job

	switch ev.kind {
	case jobSubmitted:
		return j.store.Insert(ctx, j.name, info.ID, info.SubmittedAt)
	case jobStarted:
		_, err := j.store.UpdateStatus(ctx, info.ID, Update{
			Status: StatusRunning,
			Worker: info.Worker,
			At:     info.StartedAt,
		})
		return err
	case jobFinished:
		u := Update{
			Status: StatusCompleted,
			Worker: info.Worker,
			At:     info.FinishedAt,
		}
		if info.Panicked() {
			u.Status = StatusPanicked
			u.Detail = &Detail{
				Panic: fmt.Sprint(info.Panic),
				Stack: string(info.Stack),
			}
		}
		_, err := j.store.UpdateStatus(ctx, info.ID, u)
		return err
	default:
		return fmt.Errorf("unknown journal event %d", ev.kind)
	}
}

// Close stops accepting events and waits for the buffered ones to be written.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.events)
	j.mu.Unlock()

	<-j.done

	if dropped := j.dropped.Load(); dropped > 0 {
		j.logger.Warn(fmt.Sprintf("journal dropped %d events", dropped))
	}

	return nil
}

// Stats reports how many events were written, dropped and failed to write.
func (j *Journal) Stats() (written, dropped, failed uint64) {
	return j.written.Load(), j.dropped.Load(), j.failed.Load()
}
