package pool

import "time"

// Job is a unit of work. It takes no arguments, returns nothing and is run
// exactly once by exactly one worker.
type Job func()

// task is a Job on its way through the queue.
type task struct {
	id          string
	job         Job
	submittedAt time.Time
}

func (t *task) info() JobInfo {
	return JobInfo{
		ID:          t.id,
		Worker:      -1,
		SubmittedAt: t.submittedAt,
	}
}

// JobInfo describes one job at a point of its lifecycle. Worker is -1 until a
// worker has picked the job up.
type JobInfo struct {
	ID          string
	Worker      int
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time

	// Panic holds the recovered value when the job failed fatally.
	Panic any
	Stack []byte
}

// Panicked reports whether the job failed fatally.
func (j JobInfo) Panicked() bool { return j.Panic != nil }

// Wait is the time the job spent queued before a worker started it.
func (j JobInfo) Wait() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	return j.StartedAt.Sub(j.SubmittedAt)
}

// Duration is the time the job spent executing.
func (j JobInfo) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
