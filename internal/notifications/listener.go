package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dubber/internal/config"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/workflow"
)

const publishTimeout = 15 * time.Second

// Notifier publishes terminal job events. Publishing happens off the
// controller's goroutine; Wait blocks until in-flight sends finish.
type Notifier struct {
	svc     Service
	enabled map[workflow.EventKind]bool
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewNotifier wires svc to the event kinds enabled in cfg.
func NewNotifier(svc Service, cfg *config.Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	n := &Notifier{
		svc:     svc,
		enabled: map[workflow.EventKind]bool{},
		logger:  logging.NewComponentLogger(logger, "notifications"),
	}
	if cfg != nil {
		n.enabled[workflow.EventCompleted] = cfg.Notifications.Completed
		n.enabled[workflow.EventFailed] = cfg.Notifications.Failed
		n.enabled[workflow.EventCancelled] = cfg.Notifications.Cancelled
	}
	return n
}

// HandleEvent implements workflow.Listener.
func (n *Notifier) HandleEvent(e workflow.Event) {
	if n == nil || n.svc == nil || !n.enabled[e.Kind] {
		return
	}
	event, ok := eventFor(e.Kind)
	if !ok {
		return
	}
	payload := Payload{
		"jobID":    e.Job.ID,
		"filename": e.Job.OriginalFilename,
		"message":  e.Job.Message,
	}
	if e.Job.TargetLanguage != "" {
		payload["language"] = language.DisplayName(e.Job.TargetLanguage)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := n.svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
				logging.String(logging.FieldJobID, e.Job.ID),
				logging.String("event", string(event)),
				logging.Error(err),
			)
			return
		}
		n.logger.Debug("notification sent",
			logging.String(logging.FieldJobID, e.Job.ID),
			logging.String("event", string(event)),
		)
	}()
}

// Wait blocks until every publish started by HandleEvent has returned.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

func eventFor(kind workflow.EventKind) (Event, bool) {
	switch kind {
	case workflow.EventCompleted:
		return EventJobCompleted, true
	case workflow.EventFailed:
		return EventJobFailed, true
	case workflow.EventCancelled:
		return EventJobCancelled, true
	default:
		return "", false
	}
}
