package workflow

import (
	"io"
	"time"

	"dubber/internal/presenter"
	"dubber/internal/services/dubbing"
	"dubber/internal/stages"
)

// Status mirrors the backend job status.
type Status string

const (
	StatusPending   Status = dubbing.StatusPending
	StatusRunning   Status = dubbing.StatusRunning
	StatusCompleted Status = dubbing.StatusCompleted
	StatusFailed    Status = dubbing.StatusFailed
	StatusCancelled Status = dubbing.StatusCancelled
)

// Active reports whether the job still expects status updates.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// Messages shown by the controller itself rather than the backend.
const (
	CancelledMessage   = "Processing cancelled."
	errorPrefix        = "Error: "
	pollErrorPrefix    = "Error checking status: "
	timeoutMessageTmpl = "Error: no result after %s"
)

// Upload is a validated file handed over by the intake collaborator.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	// Open returns a fresh reader over the file contents.
	Open func() (io.ReadCloser, error)
}

// Job is the client-side view of one backend job. The zero value means no
// job.
type Job struct {
	ID               string
	Status           Status
	Progress         int
	Message          string
	ResultRef        string
	OriginalFilename string
	TargetLanguage   string
	SubmittedAt      time.Time
	UpdatedAt        time.Time
	// Err is the last failure observed for the job: the submission error,
	// the most recent poll error, the server failure, or the timeout.
	Err error
}

// Empty reports whether j is the zero Job.
func (j Job) Empty() bool {
	return j.Status == ""
}

// Stage returns the stage implied by the job's progress.
func (j Job) Stage() stages.Name {
	return stages.For(j.Progress)
}

// Snapshot returns the rendering input for the job.
func (j Job) Snapshot() presenter.Snapshot {
	outcome := presenter.OutcomeRunning
	switch j.Status {
	case StatusCompleted:
		outcome = presenter.OutcomeCompleted
	case StatusFailed, StatusCancelled:
		outcome = presenter.OutcomeFailed
	}
	return presenter.Snapshot{Outcome: outcome, Progress: j.Progress, Message: j.Message}
}

// Project is the UIState for j.
func Project(j Job) presenter.UIState {
	return presenter.Project(j.Snapshot())
}
