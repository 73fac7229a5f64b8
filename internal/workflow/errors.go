package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentSubmission rejects Submit while a job is pending or running.
	ErrConcurrentSubmission = errors.New("a job is already in progress")
	// ErrSubmissionTransport marks a failed upload request. It is fatal to
	// that attempt and is never retried.
	ErrSubmissionTransport = errors.New("submission failed")
	// ErrPollTransport marks a failed status check. Polling continues.
	ErrPollTransport = errors.New("status check failed")
	// ErrServerFailure marks a job the backend reported as failed.
	ErrServerFailure = errors.New("server reported failure")
	// ErrJobTimeout marks a job that outlived the configured maximum age.
	ErrJobTimeout = errors.New("job exceeded maximum age")
	// ErrSubmissionAborted is returned by Submit when the job was cancelled
	// or the controller closed while the upload was in flight.
	ErrSubmissionAborted = errors.New("submission aborted")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller closed")
)

// SubmissionError wraps the cause of a failed upload.
type SubmissionError struct {
	Filename string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Filename, e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionTransport, e.Err}
}

// PollError wraps the cause of a failed status check.
type PollError struct {
	JobID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll job %s: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() []error {
	return []error{ErrPollTransport, e.Err}
}
