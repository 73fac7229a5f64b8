package preflight

import (
	"context"
	"strings"

	"dubber/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed reports whether the result should fail the run.
func (r Result) Failed() bool {
	return !r.Passed && !r.Optional
}

// RunAll executes every check for cfg in display order.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckCreatableDirectory("Download directory", cfg.Paths.DownloadDir),
		CheckBackend(ctx, cfg.Server.URL, cfg.RequestTimeout()),
	}

	ffprobe := CheckBinary(Binary{
		Name:        "FFprobe",
		Command:     cfg.Intake.FFprobeBinary,
		Description: "media probing before upload",
		Optional:    !cfg.Intake.ProbeMedia,
	})
	results = append(results, ffprobe)

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		results = append(results, Result{Name: "Notifications", Optional: true, Detail: "disabled (notifications.ntfy_topic is empty)"})
	} else {
		results = append(results, Result{Name: "Notifications", Passed: true, Detail: cfg.Notifications.NtfyTopic})
	}
	return results
}

// FailureCount returns how many results fail the run.
func FailureCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
