package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"dubber/internal/config"
	"dubber/internal/history"
	"dubber/internal/intake"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/notifications"
	"dubber/internal/presenter"
	"dubber/internal/services/dubbing"
	"dubber/internal/shell"
	"dubber/internal/workflow"
)

type submitOptions struct {
	language     string
	noWait       bool
	download     bool
	output       string
	pollInterval time.Duration
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload a video for dubbing and follow the job until it finishes",
		Long: `Upload a video for dubbing and follow the job until it finishes.

Progress is shown per stage (transcribing, translating, generating,
merging). Press Ctrl-C to cancel the job on the server. With --download or
--output the dubbed video is saved once the job completes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.language, "lang", "l", "", "Target language code (default: intake.default_language)")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Return after the upload is accepted")
	cmd.Flags().BoolVarP(&opts.download, "download", "d", false, "Save the dubbed video to download_dir when complete")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save the dubbed video to this file or directory when complete")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0, "Override workflow.poll_interval for this run")
	return cmd
}

// submitRun holds the collaborators of one submission.
type submitRun struct {
	cmd       *cobra.Command
	cfg       *config.Config
	opts      submitOptions
	logger    *slog.Logger
	client    *dubbing.Client
	out       io.Writer
	colorize  bool
	store     *history.Store
	notifier  *notifications.Notifier
	collector *metrics.Collector
	finished  chan workflow.Event
	ctrl      *workflow.Controller
}

func runSubmit(cmd *cobra.Command, ctx *commandContext, path string, opts submitOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.commandLogger()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	prepared, err := intake.New(cfg, intake.WithLogger(logger)).Prepare(cmd.Context(), path, opts.language)
	if err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (another dubber submit holds %s)", workflow.ErrConcurrentSubmission, cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release submission lock", logging.Error(err))
		}
	}()

	client, err := ctx.client()
	if err != nil {
		return err
	}

	run := &submitRun{
		cmd:       cmd,
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		client:    client,
		out:       out,
		colorize:  colorize,
		notifier:  notifications.NewNotifier(notifications.NewService(cfg), cfg, logger),
		collector: metrics.New(),
		finished:  make(chan workflow.Event, 1),
	}
	run.store, err = history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "job history disabled", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir"),
		)
		run.store = nil
	}
	run.ctrl = workflow.New(client, presenter.NewTerminal(out), sectionViewer(out, colorize), run.controllerOptions()...)
	defer run.close()

	for _, line := range renderSectionHeader(viewTitle(shell.Upload), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, prepared.Summary())
	fmt.Fprintf(out, "Target language: %s (%s)\n", language.DisplayName(prepared.Language), prepared.Language)

	return run.execute(prepared)
}

func (r *submitRun) controllerOptions() []workflow.Option {
	var listeners []workflow.Listener
	if r.store != nil {
		listeners = append(listeners, history.NewRecorder(r.store, r.logger))
	}
	listeners = append(listeners, r.notifier, r.collector, workflow.ListenerFunc(r.captureFinal))
	opts := workflow.ConfigOptions(r.cfg)
	opts = append(opts,
		workflow.WithLogger(r.logger),
		workflow.WithListener(listeners...),
	)
	if r.opts.pollInterval > 0 {
		opts = append(opts, workflow.WithPollInterval(r.opts.pollInterval, 0))
	}
	return opts
}

// captureFinal runs on the controller's emit path and must not block.
func (r *submitRun) captureFinal(e workflow.Event) {
	if !e.Kind.Terminal() {
		return
	}
	select {
	case r.finished <- e:
	default:
	}
}

func (r *submitRun) execute(prepared intake.Prepared) error {
	baseCtx := r.cmd.Context()
	uploadCtx, cancelUpload := context.WithCancel(baseCtx)
	defer cancelUpload()
	sigCtx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-done:
			return
		case <-sigCtx.Done():
		}
		fmt.Fprintln(r.cmd.ErrOrStderr(), "Cancelling job...")
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(baseCtx), r.cfg.RequestTimeout())
		defer cancel()
		if err := r.ctrl.Cancel(cancelCtx); err != nil {
			fmt.Fprintf(r.cmd.ErrOrStderr(), "Cancel request failed: %v\n", err)
		}
		cancelUpload()
	}()
	defer func() {
		close(done)
		watcher.Wait()
	}()

	id, err := r.ctrl.Submit(uploadCtx, prepared.Upload, prepared.Language)
	switch {
	case errors.Is(err, workflow.ErrSubmissionAborted):
		fmt.Fprintln(r.out, renderStatusLine("Result", statusWarn, "upload cancelled", r.colorize))
		return nil
	case err != nil:
		return err
	case r.opts.noWait:
		fmt.Fprintln(r.out, renderField("Job", id))
		fmt.Fprintf(r.out, "Submitted; follow it with `dubber status %s`\n", id)
		return nil
	}

	final := <-r.finished
	return r.report(sigCtx, final.Job)
}

func (r *submitRun) report(ctx context.Context, job workflow.Job) error {
	switch job.Status {
	case workflow.StatusCompleted:
		fmt.Fprintln(r.out, renderStatusLine("Result", statusOK, job.Message, r.colorize))
		fmt.Fprintln(r.out, renderField("Job", job.ID))
		fmt.Fprintln(r.out, renderField("Download", job.ResultRef))
		if !r.opts.download && r.opts.output == "" {
			return nil
		}
		target, err := artifactTarget(r.cfg, r.opts.output, job.OriginalFilename)
		if err != nil {
			return err
		}
		res, err := downloadArtifact(ctx, r.client, job.ID, target)
		if err != nil {
			return fmt.Errorf("download job %s: %w", job.ID, err)
		}
		printDownloadResult(r.out, res)
		return nil
	case workflow.StatusCancelled:
		fmt.Fprintln(r.out, renderStatusLine("Result", statusWarn, job.Message, r.colorize))
		return nil
	default:
		fmt.Fprintln(r.out, renderStatusLine("Result", statusError, job.Message, r.colorize))
		if job.Err != nil {
			return job.Err
		}
		return errors.New(job.Message)
	}
}

// close stops polling before flushing the listeners that outlive it.
func (r *submitRun) close() {
	r.ctrl.Close()
	r.notifier.Wait()
	if r.cfg.Metrics.Enabled && r.cfg.Metrics.TextfilePath != "" {
		if err := r.collector.WriteTextfile(r.cfg.Metrics.TextfilePath); err != nil {
			logging.WarnWithContext(r.logger, "metrics export failed", "metrics_write_failed",
				logging.String("path", r.cfg.Metrics.TextfilePath),
				logging.Error(err),
			)
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("failed to close history", logging.Error(err))
		}
	}
}
