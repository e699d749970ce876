package pool

// Observer is notified about job and worker lifecycle events. Calls are made
// synchronously from the submitting goroutine (JobSubmitted) or from the
// worker goroutine (everything else), so implementations must be safe for
// concurrent use and should return quickly.
//
// JobSubmitted for a job always happens before its JobStarted.
//
// JobSubmitted runs while the pool holds its submission lock: it must not call
// Submit, Shutdown or Close on the same pool, and a panic in it reaches the
// caller of Submit. JobStarted runs under the worker's recover, so a panic
// there fails the job like a panic in the job itself and the job is not run.
type Observer interface {
	JobSubmitted(JobInfo)
	JobStarted(JobInfo)
	JobFinished(JobInfo)
	WorkerExited(WorkerInfo)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) JobSubmitted(JobInfo)    {}
func (NopObserver) JobStarted(JobInfo)      {}
func (NopObserver) JobFinished(JobInfo)     {}
func (NopObserver) WorkerExited(WorkerInfo) {}

// Observers fans every event out to each of its members in order.
type Observers []Observer

func (o Observers) JobSubmitted(info JobInfo) {
	for _, ob := range o {
		ob.JobSubmitted(info)
	}
}

func (o Observers) JobStarted(info JobInfo) {
	for _, ob := range o {
		ob.JobStarted(info)
	}
}

func (o Observers) JobFinished(info JobInfo) {
	for _, ob := range o {
		ob.JobFinished(info)
	}
}

func (o Observers) WorkerExited(info WorkerInfo) {
	for _, ob := range o {
		ob.WorkerExited(info)
	}
}
