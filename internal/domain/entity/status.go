package entity

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"

	// StatusError is what older workers publish instead of failed.
	StatusError JobStatus = "error"
)

// stage orders statuses along the forward-only lifecycle. Unknown statuses get -1.
func (s JobStatus) stage() int {
	switch s {
	case StatusPending:
		return 0
	case StatusQueued:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed, StatusError:
		return 3
	default:
		return -1
	}
}

// Precedes reports whether s comes strictly before o in the lifecycle.
func (s JobStatus) Precedes(o JobStatus) bool {
	return s.stage() < o.stage()
}

func (s JobStatus) IsTerminal() bool {
	return s.stage() == 3
}

// Persisted reports whether the status may be stored on a Job Record.
func (s JobStatus) Persisted() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces monotonic forward transitions between persisted statuses.
func CanTransition(from, to JobStatus) bool {
	if !from.Persisted() || !to.Persisted() {
		return false
	}
	return to.stage() > from.stage()
}

// PredecessorsOf lists the persisted statuses a record may leave to reach to.
func PredecessorsOf(to JobStatus) []JobStatus {
	var out []JobStatus
	for _, s := range []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		if CanTransition(s, to) {
			out = append(out, s)
		}
	}
	return out
}
