package pool

import "errors"

var (
	// ErrInvalidConfiguration is returned by New for a non-positive size or an
	// invalid option. It is not worth retrying.
	ErrInvalidConfiguration = errors.New("invalid worker pool configuration")

	// ErrSpawnFailure is returned by New when a worker could not be started.
	// The caller may retry once the underlying resource pressure is gone.
	ErrSpawnFailure = errors.New("failed to spawn worker")

	// ErrPoolShutDown is returned by Submit once Shutdown has been called.
	ErrPoolShutDown = errors.New("worker pool is shut down")

	// ErrNoLiveWorkers is returned by Submit once every worker has been
	// terminated by a failing job.
	ErrNoLiveWorkers = errors.New("worker pool has no live workers")

	// ErrJobExited is the JobInfo.Panic value of a job that ended its worker
	// goroutine with runtime.Goexit. The worker terminates whatever the panic
	// policy.
	ErrJobExited = errors.New("job exited the worker goroutine")

	ErrNilJob     = errors.New("job is nil")
	ErrEmptyJobID = errors.New("job id is empty")
)
