package history

import (
	"context"
	"log/slog"
	"time"

	"dubber/internal/logging"
	"dubber/internal/workflow"
)

const recordTimeout = 5 * time.Second

// Recorder writes controller events into the store.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder returns a workflow.Listener backed by store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

// HandleEvent implements workflow.Listener. Events without a backend job ID
// (the upload phase, a rejected submission, the return to upload) are
// ignored.
func (r *Recorder) HandleEvent(e workflow.Event) {
	if r == nil || r.store == nil || e.Job.ID == "" {
		return
	}
	switch e.Kind {
	case workflow.EventSubmitting, workflow.EventReset:
		return
	}
	entry := EntryFromJob(e.Job)
	entry.UpdatedAt = e.At
	if e.Kind.Terminal() {
		at := e.At
		entry.FinishedAt = &at
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Upsert(ctx, entry); err != nil {
		logging.WarnWithContext(r.logger, "history write failed", "history_write_failed",
			logging.String(logging.FieldJobID, e.Job.ID),
			logging.String("event", string(e.Kind)),
			logging.Error(err),
		)
	}
}

// EntryFromJob converts the controller's view of a job into a history row.
func EntryFromJob(j workflow.Job) Entry {
	entry := Entry{
		JobID:          j.ID,
		Filename:       j.OriginalFilename,
		TargetLanguage: j.TargetLanguage,
		Status:         j.Status.String(),
		Progress:       j.Progress,
		Message:        j.Message,
		ResultRef:      j.ResultRef,
		SubmittedAt:    j.SubmittedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	if j.Err != nil {
		entry.Error = j.Err.Error()
	}
	return entry
}
