package journal

// Status is the lifecycle status of a journaled job.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPanicked  Status = "panicked"
)

// StatusLevel orders statuses; a job only ever moves to a higher level.
type StatusLevel int

const (
	unknownLevel StatusLevel = iota
	submittedLevel
	runningLevel
	finishedLevel
)

func (s Status) Level() StatusLevel {
	switch s {
	case StatusSubmitted:
		return submittedLevel
	case StatusRunning:
		return runningLevel
	case StatusCompleted, StatusPanicked:
		return finishedLevel
	default:
		return unknownLevel
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Level() == finishedLevel
}

func (s Status) Valid() bool {
	return s.Level() != unknownLevel
}
