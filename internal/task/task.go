// Package task tracks TopicBook generation runs. Each task is owned by the
// runner executing it; any number of observers may follow its progress.
package task

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle state of a task.
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Kind classifies a failure.
type Kind string

const (
	KindNoContentGathered       Kind = "NoContentGathered"
	KindOutlineGenerationFailed Kind = "OutlineGenerationFailed"
	KindFinalSynthesisFailed    Kind = "FinalSynthesisFailed"
	KindPersistFailed           Kind = "PersistFailed"
	KindCancelled               Kind = "Cancelled"
	KindInternal                Kind = "Internal"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task transition")
	ErrNotOwner          = errors.New("handle does not own task")
	ErrRegistryClosed    = errors.New("task registry closed")
	ErrEmptyTopic        = errors.New("topic is required")
)

// Request is the user input for one run.
type Request struct {
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
}

// Result is the terminal payload. Success fills Message and Path; failure
// fills Error and Kind.
type Result struct {
	Message string `json:"result,omitempty"`
	Path    string `json:"filepath,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// Snapshot is a consistent copy of a task's state.
type Snapshot struct {
	ID        string    `json:"task_id"`
	State     State     `json:"state"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventType distinguishes observed events.
type EventType string

const (
	EventStatus   EventType = "status"
	EventTerminal EventType = "terminal"
)

// Event is one item of an observation. Terminal events carry the final snapshot.
type Event struct {
	Type     EventType
	Message  string
	Snapshot Snapshot
}

// Runner executes a task and completes it through the handle.
type Runner interface {
	Run(ctx context.Context, req Request, h *Handle)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req Request, h *Handle)

func (f RunnerFunc) Run(ctx context.Context, req Request, h *Handle) { f(ctx, req, h) }

// Transition is delivered to listeners after every state change.
type Transition struct {
	TaskID  string    `json:"task_id"`
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
	Result  *Result   `json:"result,omitempty"`
	At      time.Time `json:"occurred_at"`
}

// Listener receives transitions in the order they happened for each task.
// Implementations must not block.
type Listener interface {
	OnTransition(Transition)
}
