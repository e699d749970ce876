// Package pool implements a fixed-size worker pool.
//
// A WorkerPool owns size workers that take jobs from one shared, unbounded
// FIFO queue and run them to completion, one job per worker at a time. Jobs
// are fire-and-forget: Submit only enqueues, it never waits for a worker.
//
//	p, err := pool.New(4)
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	_ = p.Submit(func() { fmt.Println("hello") })
//
// Shutdown stops accepting jobs, lets the workers drain everything that was
// queued before it, and joins every worker. It is idempotent.
//
// A job that panics is not retried. Under the default PanicTerminate policy
// its worker logs the failure and terminates, and the pool carries on with one
// worker fewer. PanicRecover keeps the worker alive instead.
package pool

import "context"

type Pool interface {
	// Submit enqueues a job. It never blocks on queue capacity and fails
	// with ErrPoolShutDown once Shutdown has been called.
	Submit(Job) error

	// SubmitID is Submit that also returns the id assigned to the job.
	SubmitID(Job) (string, error)

	// SubmitAs is Submit with a caller chosen job id.
	SubmitAs(string, Job) error

	// Shutdown closes the pool to new jobs, waits for queued and in-flight
	// jobs to finish and joins every worker. Calling it again is a no-op.
	Shutdown(context.Context) error

	// Close is Shutdown without a deadline.
	Close() error

	Stats() Stats
}
