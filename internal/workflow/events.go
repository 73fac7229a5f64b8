package workflow

import (
	"time"

	"dubber/internal/shell"
)

// EventKind names a controller transition.
type EventKind string

const (
	// EventSubmitting fires when the shell switches to processing, before
	// the upload request is sent.
	EventSubmitting EventKind = "submitting"
	// EventSubmitted fires once the backend has assigned a job ID.
	EventSubmitted EventKind = "submitted"
	// EventProgress fires for every applied non-terminal status.
	EventProgress EventKind = "progress"
	// EventPollError fires when a status check fails.
	EventPollError EventKind = "poll_error"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	// EventReset fires when the controller drops the job and returns to the
	// upload view.
	EventReset EventKind = "reset"
)

// Terminal reports whether the event ends the job.
func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed || k == EventCancelled
}

// Event describes one controller transition. Seq increases by one per event
// for the lifetime of the controller.
type Event struct {
	Seq  uint64
	Kind EventKind
	Job  Job
	View shell.View
	At   time.Time
}

// Listener receives controller events in order. Listeners run synchronously
// on the goroutine that caused the transition and must not call back into
// Submit, Cancel, Dismiss, or Close.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }
