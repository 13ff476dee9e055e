package orchestrator

import (
	"time"

	"github.com/curvesy/argus/internal/schema"
)

// Status is the lifecycle state of an analysis task. Transitions are
// strictly forward: pending -> running -> terminal, never back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// rank orders statuses along the allowed lifecycle.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	default:
		return 2
	}
}

// Task is one analysis job against a single backend.
type Task struct {
	ID          string         `json:"id"`
	Kind        schema.Kind    `json:"kind"`
	SubjectID   string         `json:"subjectId"`
	Status      Status         `json:"status"`
	Attempts    int            `json:"attempts"`
	StartedAt   time.Time      `json:"startedAt,omitempty"`
	CompletedAt time.Time      `json:"completedAt,omitempty"`
	Result      schema.Payload `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// transition moves the task forward. Regressions and transitions out of a
// terminal state are refused.
func (t *Task) transition(next Status) bool {
	if t.Status.Terminal() {
		return false
	}
	if next.rank() <= t.Status.rank() {
		return false
	}
	t.Status = next
	return true
}

// CompositeResult aggregates the tasks of one run for a subject.
// Confidence is the mean score of succeeded tasks, nil when none
// succeeded; failed tasks are excluded from the mean, not zeroed.
type CompositeResult struct {
	RunID      string   `json:"runId"`
	SubjectID  string   `json:"subjectId"`
	Tasks      []*Task  `json:"tasks"`
	Confidence *float64 `json:"confidence"`
}

// compositeConfidence derives the partial confidence for tasks.
func compositeConfidence(tasks []*Task) *float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t != nil && t.Status == StatusSucceeded && t.Result != nil {
			sum += t.Result.Score()
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
