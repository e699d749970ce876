// Package workpool runs jobs on a fixed-size worker pool, with optional job
// journaling to sqlite and prometheus metrics, configured from a YAML file.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jirevwe/workpool/config"
	"github.com/jirevwe/workpool/journal"
	"github.com/jirevwe/workpool/metrics"
	"github.com/jirevwe/workpool/pool"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	cfg     *config.Config
	mux     *Mux
	logger  *slog.Logger
	pool    *pool.WorkerPool
	store   *journal.Store
	journal *journal.Journal
	metrics *metrics.Collector

	closeOnce sync.Once
	closeErr  error
}

type serverOptions struct {
	mux        *Mux
	logger     *slog.Logger
	registerer prometheus.Registerer
	observers  []pool.Observer
	spawner    pool.Spawner
}

type ServerOption func(*serverOptions)

// WithMux sets the mux used by Enqueue. The default is an empty NewMux.
func WithMux(mux *Mux) ServerOption {
	return func(o *serverOptions) {
		o.mux = mux
	}
}

// WithLogger overrides the logger built from the log section of the config.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithRegisterer sets where metrics are registered. The default is
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(o *serverOptions) {
		o.registerer = reg
	}
}

// WithObserver adds an observer to the pool next to the journal and metrics.
func WithObserver(ob pool.Observer) ServerOption {
	return func(o *serverOptions) {
		o.observers = append(o.observers, ob)
	}
}

// WithSpawner replaces the pool's worker spawner.
func WithSpawner(s pool.Spawner) ServerOption {
	return func(o *serverOptions) {
		o.spawner = s
	}
}

// NewServer builds a server from cfg; a nil cfg means config.Default(). The
// worker pool is started before NewServer returns.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		logger, err := cfg.NewLogger(os.Stdout)
		if err != nil {
			return nil, err
		}
		o.logger = logger
	}

	if o.mux == nil {
		o.mux = NewMux()
	}

	s := &Server{
		cfg:    cfg,
		mux:    o.mux,
		logger: o.logger,
	}

	poolOpts := []pool.Option{
		pool.WithName(cfg.Name),
		pool.WithLogger(o.logger),
		pool.WithPanicPolicy(cfg.Policy()),
		pool.WithLockOSThread(cfg.LockOSThread),
	}

	if o.spawner != nil {
		poolOpts = append(poolOpts, pool.WithSpawner(o.spawner))
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path, o.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.store = store
		s.journal = journal.New(store,
			journal.WithLogger(o.logger),
			journal.WithPoolName(cfg.Name),
			journal.WithBuffer(cfg.Journal.Buffer))
		poolOpts = append(poolOpts, pool.WithObserver(s.journal))
	}

	if cfg.Metrics.Enabled {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		collector, err := metrics.New(reg, cfg.Metrics.Namespace, cfg.Workers)
		if err != nil {
			s.closeJournal()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		s.metrics = collector
		poolOpts = append(poolOpts, pool.WithObserver(collector))
	}

	for _, ob := range o.observers {
		poolOpts = append(poolOpts, pool.WithObserver(ob))
	}

	p, err := pool.New(cfg.Workers, poolOpts...)
	if err != nil {
		s.closeJournal()
		return nil, err
	}
	s.pool = p

	return s, nil
}

// Handle registers a handler for tasks of the given name.
func (s *Server) Handle(name string, h Handler) {
	s.mux.Handle(name, h)
}

// Enqueue submits a task for the handler registered under name and returns
// the task id. ctx is handed to the handler without its cancellation, since
// the task outlives the call.
func (s *Server) Enqueue(ctx context.Context, name string, payload []byte) (string, error) {
	if !s.mux.Has(name) {
		return "", notFound(name)
	}

	task := NewTask(name, payload).WithTaskId(ulid.Make().String())
	taskCtx := context.WithoutCancel(ctx)

	err := s.pool.SubmitAs(task.Id(), func() {
		if err := s.mux.ProcessTask(taskCtx, task); err != nil {
			s.logger.Error(err.Error(), "task", task.Id(), "type", task.Type())
		}
	})
	if err != nil {
		return "", err
	}

	return task.Id(), nil
}

// Submit hands a plain job to the pool.
func (s *Server) Submit(job pool.Job) error {
	return s.pool.Submit(job)
}

func (s *Server) Pool() *pool.WorkerPool {
	return s.pool
}

// Store returns the journal store, or nil when journaling is disabled. It is
// closed by Close.
func (s *Server) Store() *journal.Store {
	return s.store
}

func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// Close shuts the pool down, waiting at most shutdown_timeout (forever when
// it is zero), then flushes and closes the journal. Only the first call does
// any work; later calls return the same result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		ctx := context.Background()
		if timeout := time.Duration(s.cfg.ShutdownTimeout); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var errs []error
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Error("worker pool did not stop in time", "timeout", time.Duration(s.cfg.ShutdownTimeout).String())
			errs = append(errs, err)
		}

		errs = append(errs, s.closeJournal())
		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}

func (s *Server) closeJournal() error {
	if s.journal == nil {
		return nil
	}

	return errors.Join(s.journal.Close(), s.store.Close())
}
