package enrichment

import (
	"time"

	"github.com/google/uuid"
)

// Defaults for the retry budget.
const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second
)

// State is the lifecycle position of an enrichment task.
type State string

const (
	StatePending        State = "pending"
	StateRunning        State = "running"
	StateSucceeded      State = "succeeded"
	StateFailedTerminal State = "failed_terminal"
)

// Terminal reports whether no further attempt follows s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailedTerminal
}

// Task is the execution context of one enrichment attempt. It is a value:
// retries get a fresh copy from Next rather than mutating a shared counter.
type Task struct {
	ArticleID   uuid.UUID     `json:"article_id"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
}

// NewTask returns the first attempt for articleID. Non-positive limits take the defaults.
func NewTask(articleID uuid.UUID, maxAttempts int, timeout time.Duration) Task {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Task{
		ArticleID:   articleID,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		Timeout:     timeout,
	}
}

// Next returns the task for the following attempt.
func (t Task) Next() Task {
	t.Attempt++
	return t
}

// Final reports whether this is the last attempt the budget allows.
func (t Task) Final() bool {
	return t.Attempt >= t.MaxAttempts
}

// Outcome is what one attempt (or a full inline run) produced.
type Outcome struct {
	State State
	// Next is set only when State is StateRunning: the attempt that should run next.
	Next    *Task
	Slug    string
	Summary string
	Err     error
}
