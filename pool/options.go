package pool

import (
	"fmt"
	"log/slog"
)

type options struct {
	name         string
	log          *slog.Logger
	observers    Observers
	policy       PanicPolicy
	spawner      Spawner
	lockOSThread bool
}

// Option configures a WorkerPool.
type Option func(*options)

// WithName labels the pool in log records.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger used by the pool and its workers.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithObserver adds an Observer. It may be given more than once.
func WithObserver(ob Observer) Option {
	return func(o *options) {
		if ob != nil {
			o.observers = append(o.observers, ob)
		}
	}
}

// WithPanicPolicy decides what happens to a worker whose job panics. The
// default is PanicTerminate.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithSpawner replaces the default goroutine spawner.
func WithSpawner(s Spawner) Option {
	return func(o *options) {
		o.spawner = s
	}
}

// WithLockOSThread pins every worker to its own OS thread. It has no effect
// together with WithSpawner.
func WithLockOSThread(lock bool) Option {
	return func(o *options) {
		o.lockOSThread = lock
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		name:   "workpool",
		policy: PanicTerminate,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.log == nil {
		o.log = slog.Default()
	}

	if o.spawner == nil {
		o.spawner = goroutineSpawner{lockOSThread: o.lockOSThread}
	}

	if o.policy != PanicTerminate && o.policy != PanicRecover {
		return nil, fmt.Errorf("%w: unknown panic policy %d", ErrInvalidConfiguration, o.policy)
	}

	return o, nil
}
