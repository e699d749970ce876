package pool

// State is the lifecycle state of a Worker.
type State int32

const (
	// Running means the worker is waiting for its next job.
	Running State = iota
	// Executing means the worker is running a job.
	Executing
	// Terminated is final.
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Executing:
		return "executing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PanicPolicy decides what happens to a worker whose job panics.
type PanicPolicy int

const (
	// PanicTerminate logs the failure and ends the worker. The pool keeps
	// running with one worker fewer for the rest of its life.
	PanicTerminate PanicPolicy = iota

	// PanicRecover logs the failure and keeps the worker serving jobs.
	PanicRecover
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicTerminate:
		return "terminate"
	case PanicRecover:
		return "recover"
	default:
		return "unknown"
	}
}

// ParsePanicPolicy maps "terminate" and "recover" to their policy.
func ParsePanicPolicy(s string) (PanicPolicy, bool) {
	switch s {
	case "terminate", "":
		return PanicTerminate, true
	case "recover":
		return PanicRecover, true
	default:
		return 0, false
	}
}
