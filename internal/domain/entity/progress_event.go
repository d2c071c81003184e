package entity

import "time"

// ProgressEvent is a transient status update for one job. Timestamp is unix milliseconds.
type ProgressEvent struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	Progress  *int      `json:"progress,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func NewProgressEvent(jobID string, status JobStatus, message string) ProgressEvent {
	return ProgressEvent{
		ID:        jobID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithProgress clamps p into [0,100].
func (e ProgressEvent) WithProgress(p int) ProgressEvent {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	e.Progress = &p
	return e
}

func (e ProgressEvent) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// Supersedes reports whether e is a newer update than prev. A later lifecycle stage always
// wins; within a stage the later timestamp wins, and at the same millisecond more progress.
func (e ProgressEvent) Supersedes(prev ProgressEvent) bool {
	if e.Status.stage() != prev.Status.stage() {
		return prev.Status.Precedes(e.Status)
	}
	if e.Timestamp != prev.Timestamp {
		return e.Timestamp > prev.Timestamp
	}
	return e.progress() > prev.progress()
}

func (e ProgressEvent) progress() int {
	if e.Progress == nil {
		return -1
	}
	return *e.Progress
}
