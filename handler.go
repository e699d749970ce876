package workpool

import "context"

// A Handler processes tasks.
//
// ProcessTask should return nil if the processing of a task
// is successful. A returned error is logged; the task is not
// retried. A panic is treated like any other failing job by
// the pool's panic policy.
type Handler interface {
	ProcessTask(context.Context, *Task) error
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as a Handler. If f is a function
// with the appropriate signature, HandlerFunc(f) is a
// Handler that calls f.
type HandlerFunc func(context.Context, *Task) error

// ProcessTask calls fn(ctx, task)
func (fn HandlerFunc) ProcessTask(ctx context.Context, task *Task) error {
	return fn(ctx, task)
}
