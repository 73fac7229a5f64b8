package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"dubber/internal/logging"
	"dubber/internal/presenter"
	"dubber/internal/services"
	"dubber/internal/services/dubbing"
	"dubber/internal/shell"
	"dubber/internal/stages"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultCancelGrace  = 2 * time.Second
)

// Backend is the subset of the dubbing client the controller needs.
type Backend interface {
	Submit(ctx context.Context, req dubbing.SubmitRequest) (string, error)
	Status(ctx context.Context, jobID string) (dubbing.StatusResponse, error)
	Cancel(ctx context.Context, jobID string) error
	DownloadURL(jobID string) string
}

// Controller owns the current job, the active shell view, the poll loop, and
// the grace-delay timer.
type Controller struct {
	backend   Backend
	presenter presenter.Presenter
	shell     *shell.Shell
	logger    *slog.Logger

	newTicker TickerFunc
	afterFunc AfterFunc
	now       func() time.Time
	grace     time.Duration
	maxAge    time.Duration

	mu         sync.Mutex
	job        *Job
	generation uint64
	pollCancel context.CancelFunc
	issuedSeq  uint64
	appliedSeq uint64
	graceTimer Timer
	closed     bool
	listeners  []Listener
	pending    []Event
	eventSeq   uint64
	sampler    *logging.ProgressSampler
	loops      sync.WaitGroup

	// emitMu keeps listener delivery in the order events were queued.
	emitMu sync.Mutex
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollInterval polls every interval with normally distributed jitter of
// the given standard deviation.
func WithPollInterval(interval, jitter time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.newTicker = JitterTicker(interval, jitter)
		}
	}
}

// WithTicker replaces the poll ticker factory.
func WithTicker(fn TickerFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newTicker = fn
		}
	}
}

// WithCancelGrace sets how long a cancelled job stays on screen before the
// controller returns to upload. Zero returns immediately.
func WithCancelGrace(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithMaxJobAge fails a job locally once it has been polling for d. Zero
// disables the limit.
func WithMaxJobAge(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.maxAge = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAfterFunc replaces time.AfterFunc for the grace delay.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithListener registers listeners at construction.
func WithListener(listeners ...Listener) Option {
	return func(c *Controller) {
		for _, l := range listeners {
			if l != nil {
				c.listeners = append(c.listeners, l)
			}
		}
	}
}

// New constructs a controller. The presenter receives every UI update and is
// reset by the shell on view changes; viewer displays the active view.
func New(backend Backend, p presenter.Presenter, viewer shell.Viewer, opts ...Option) *Controller {
	if p == nil {
		p = presenter.Nop{}
	}
	c := &Controller{
		backend:   backend,
		presenter: p,
		shell:     shell.New(p, viewer),
		logger:    logging.NewNop(),
		newTicker: JitterTicker(defaultPollInterval, 0),
		afterFunc: stdAfterFunc,
		now:       time.Now,
		grace:     defaultCancelGrace,
		sampler:   logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "workflow")
	return c
}

// AddListener registers l for subsequent events.
func (c *Controller) AddListener(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Current returns a copy of the current job, or the zero Job.
func (c *Controller) Current() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return Job{}
	}
	return *c.job
}

// Active reports whether a job is pending or running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job != nil && c.job.Status.Active()
}

// View returns the active shell view.
func (c *Controller) View() shell.View {
	return c.shell.View()
}

// Submit uploads a validated file and starts polling. The shell switches to
// processing before the request is sent. A failed upload leaves the job
// failed on screen and returns a *SubmissionError; it is never retried.
func (c *Controller) Submit(ctx context.Context, upload Upload, language string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.job != nil && c.job.Status.Active() {
		c.mu.Unlock()
		return "", ErrConcurrentSubmission
	}
	c.stopGraceLocked()
	c.teardownLocked()
	now := c.now()
	c.job = &Job{
		Status:           StatusPending,
		OriginalFilename: upload.Filename,
		TargetLanguage:   language,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	c.issuedSeq, c.appliedSeq = 0, 0
	c.sampler.Reset()
	gen := c.generation
	c.showLocked(shell.Processing)
	c.queueLocked(EventSubmitting)
	c.unlockAndEmit()

	id, err := c.upload(ctx, upload, language)

	c.mu.Lock()
	if c.job == nil || c.generation != gen {
		c.mu.Unlock()
		if err == nil && id != "" {
			c.cancelOrphan(ctx, id)
		}
		return "", ErrSubmissionAborted
	}
	if err != nil {
		subErr := &SubmissionError{Filename: upload.Filename, Err: err}
		c.teardownLocked()
		c.job.Status = StatusFailed
		c.job.Message = errorPrefix + err.Error()
		c.job.Err = subErr
		c.job.UpdatedAt = c.now()
		c.renderLocked()
		c.queueLocked(EventFailed)
		c.logger.Warn("job submission failed",
			logging.String("file", upload.Filename),
			logging.Error(err),
			logging.String(logging.FieldEventType, "submit_failed"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		c.unlockAndEmit()
		return "", subErr
	}
	c.job.ID = id
	c.job.UpdatedAt = c.now()
	c.startPollingLocked(id)
	c.queueLocked(EventSubmitted)
	c.logger.Info("job submitted",
		logging.String(logging.FieldJobID, id),
		logging.String("file", upload.Filename),
		logging.String("language", language),
	)
	c.unlockAndEmit()
	return id, nil
}

func (c *Controller) upload(ctx context.Context, upload Upload, language string) (string, error) {
	if upload.Open == nil {
		return "", services.Wrap(services.ErrValidation, "workflow", "submit", "upload has no content", nil)
	}
	content, err := upload.Open()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "workflow", "submit", "open upload", err)
	}
	defer content.Close()
	return c.backend.Submit(ctx, dubbing.SubmitRequest{
		Filename: upload.Filename,
		Content:  content,
		Language: language,
	})
}

// cancelOrphan cancels a job the backend accepted after the local job was
// already cancelled or the controller closed.
func (c *Controller) cancelOrphan(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.backend.Cancel(ctx, id); err != nil {
		c.logger.Warn("cancel of abandoned job failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldEventType, "orphan_cancel_failed"),
			logging.String(logging.FieldErrorHint, "the job may keep running on the server"),
		)
		return
	}
	c.logger.Info("cancelled abandoned job", logging.String(logging.FieldJobID, id))
}

// Cancel stops the active job. Local state is final before the backend is
// contacted: polling is torn down, the job shows as cancelled, and the
// controller returns to upload after the grace delay whatever the request
// outcome. The returned error describes the cancel request only.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.job == nil || !c.job.Status.Active() {
		c.mu.Unlock()
		return nil
	}
	id := c.job.ID
	c.teardownLocked()
	c.job.Status = StatusCancelled
	c.job.Message = CancelledMessage
	c.job.UpdatedAt = c.now()
	c.renderLocked()
	c.queueLocked(EventCancelled)
	c.scheduleReturnLocked()
	c.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	c.unlockAndEmit()

	if id == "" {
		return nil
	}
	if err := c.backend.Cancel(ctx, id); err != nil {
		logging.WarnWithContext(c.logger, "cancel request failed", "cancel_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	return nil
}

// Dismiss acknowledges a finished job and returns to upload. It reports
// false and does nothing while a job is active or when there is no job.
func (c *Controller) Dismiss() bool {
	c.mu.Lock()
	if c.job == nil || c.job.Status.Active() {
		c.mu.Unlock()
		return false
	}
	c.stopGraceLocked()
	c.resetLocked()
	c.unlockAndEmit()
	return true
}

// Close stops polling and pending timers and waits for the poll goroutine
// to exit. Submit fails with ErrClosed afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopGraceLocked()
	c.teardownLocked()
	c.mu.Unlock()
	c.loops.Wait()
}

func (c *Controller) startPollingLocked(id string) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = services.WithJobID(ctx, id)
	c.pollCancel = cancel
	gen := c.generation
	ticker := c.newTicker()
	c.loops.Add(1)
	go c.pollLoop(ctx, gen, ticker)
}

func (c *Controller) pollLoop(ctx context.Context, gen uint64, ticker Ticker) {
	defer c.loops.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.poll(ctx, gen)
		}
	}
}

func (c *Controller) poll(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if !c.pollableLocked(gen) {
		c.mu.Unlock()
		return
	}
	if c.maxAge > 0 && c.now().Sub(c.job.SubmittedAt) >= c.maxAge {
		c.timeoutLocked()
		c.unlockAndEmit()
		return
	}
	c.issuedSeq++
	seq := c.issuedSeq
	id := c.job.ID
	c.mu.Unlock()

	resp, err := c.backend.Status(ctx, id)

	c.mu.Lock()
	if !c.pollableLocked(gen) || ctx.Err() != nil {
		c.logger.Debug("discarding status from stopped poll loop", logging.String(logging.FieldJobID, id))
		c.mu.Unlock()
		return
	}
	if seq <= c.appliedSeq {
		c.logger.Debug("discarding out-of-order status",
			logging.String(logging.FieldJobID, id),
			logging.Int64("seq", int64(seq)),
			logging.Int64("applied_seq", int64(c.appliedSeq)),
		)
		c.mu.Unlock()
		return
	}
	c.appliedSeq = seq
	if err != nil {
		c.pollFailedLocked(err)
	} else {
		c.applyStatusLocked(resp)
	}
	c.unlockAndEmit()
}

func (c *Controller) pollableLocked(gen uint64) bool {
	return c.job != nil && c.generation == gen && c.job.Status.Active() && c.job.ID != ""
}

func (c *Controller) pollFailedLocked(err error) {
	job := c.job
	job.Err = &PollError{JobID: job.ID, Err: err}
	job.Message = pollErrorPrefix + err.Error()
	job.UpdatedAt = c.now()
	c.renderLocked()
	c.queueLocked(EventPollError)
	logging.WarnWithContext(c.logger, "status check failed", "poll_failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
}

func (c *Controller) applyStatusLocked(resp dubbing.StatusResponse) {
	job := c.job
	progress := stages.Clamp(resp.Progress)
	if progress != resp.Progress {
		c.logger.Debug("progress out of range; clamped",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("reported", resp.Progress),
		)
	}
	status := Status(resp.Status)
	if progress < job.Progress {
		switch status {
		case StatusFailed, StatusCancelled:
			// Failure and cancel reports may reset progress to 0. Keep
			// the last known stage.
			progress = job.Progress
		default:
			c.logger.Info("progress regressed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Int("from", job.Progress),
				logging.Int("to", progress),
				logging.Alert("progress_regression"),
			)
		}
	}
	job.Status = status
	job.Progress = progress
	job.Message = resp.Message
	job.Err = nil
	job.UpdatedAt = c.now()
	if resp.OriginalFilename != "" {
		job.OriginalFilename = resp.OriginalFilename
	}

	switch job.Status {
	case StatusCompleted:
		c.teardownLocked()
		job.ResultRef = c.backend.DownloadURL(job.ID)
		c.renderLocked()
		c.showLocked(shell.Results)
		c.queueLocked(EventCompleted)
		c.logger.Info("job completed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("result", job.ResultRef),
			logging.Duration("elapsed", job.UpdatedAt.Sub(job.SubmittedAt)),
		)
	case StatusFailed:
		c.teardownLocked()
		job.Err = fmt.Errorf("%w: %s", ErrServerFailure, resp.Message)
		c.renderLocked()
		c.queueLocked(EventFailed)
		c.logger.Warn("job failed on server",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStage, job.Stage().String()),
			logging.String("message", resp.Message),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "check the backend logs for this job"),
		)
	case StatusCancelled:
		c.teardownLocked()
		if job.Message == "" {
			job.Message = CancelledMessage
		}
		c.renderLocked()
		c.queueLocked(EventCancelled)
		c.scheduleReturnLocked()
		c.logger.Info("job cancelled by server", logging.String(logging.FieldJobID, job.ID))
	default:
		c.renderLocked()
		c.queueLocked(EventProgress)
		stage := job.Stage().String()
		if c.sampler.ShouldLog(job.Progress, stage) {
			c.logger.Info("job progress",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldStage, stage),
				logging.Int("progress", job.Progress),
			)
		}
	}
}

func (c *Controller) timeoutLocked() {
	job := c.job
	c.teardownLocked()
	job.Status = StatusFailed
	job.Err = fmt.Errorf("%w after %s", ErrJobTimeout, c.maxAge)
	job.Message = fmt.Sprintf(timeoutMessageTmpl, c.maxAge)
	job.UpdatedAt = c.now()
	c.renderLocked()
	c.queueLocked(EventFailed)
	logging.WarnWithContext(c.logger, "job timed out", "job_timeout",
		logging.String(logging.FieldJobID, job.ID),
		logging.Duration("max_job_age", c.maxAge),
		logging.String(logging.FieldErrorHint, "raise workflow.max_job_age or check the backend"),
	)
}

// teardownLocked stops the poll loop, if any, and invalidates in-flight
// responses. Safe to call repeatedly.
func (c *Controller) teardownLocked() {
	c.generation++
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
		c.logger.Debug("polling stopped")
	}
}

func (c *Controller) scheduleReturnLocked() {
	c.stopGraceLocked()
	if c.grace <= 0 {
		c.resetLocked()
		return
	}
	gen := c.generation
	c.graceTimer = c.afterFunc(c.grace, func() {
		c.mu.Lock()
		if c.closed || c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.graceTimer = nil
		c.resetLocked()
		c.unlockAndEmit()
	})
}

func (c *Controller) stopGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

// resetLocked drops the job and shows the upload view.
func (c *Controller) resetLocked() {
	c.teardownLocked()
	c.job = nil
	c.showLocked(shell.Upload)
	c.queueLocked(EventReset)
}

func (c *Controller) renderLocked() {
	if c.job == nil {
		return
	}
	presenter.Apply(c.presenter, Project(*c.job))
}

func (c *Controller) showLocked(v shell.View) {
	if err := c.shell.Show(v); err != nil {
		c.logger.Error("view change failed", logging.String(logging.FieldView, v.String()), logging.Error(err))
	}
}

func (c *Controller) queueLocked(kind EventKind) {
	c.eventSeq++
	ev := Event{Seq: c.eventSeq, Kind: kind, View: c.shell.View(), At: c.now()}
	if c.job != nil {
		ev.Job = *c.job
	}
	c.pending = append(c.pending, ev)
}

// unlockAndEmit releases c.mu and delivers queued events. emitMu is taken
// before c.mu is released so concurrent transitions deliver in queue order.
func (c *Controller) unlockAndEmit() {
	events := c.pending
	c.pending = nil
	var listeners []Listener
	if len(events) > 0 {
		listeners = append([]Listener(nil), c.listeners...)
	}
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l.HandleEvent(ev)
		}
	}
}

// NopCloser adapts a reader for Upload.Open in tests and in-memory sources.
func NopCloser(r io.Reader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return io.NopCloser(r), nil }
}
