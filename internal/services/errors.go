package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input rejected before any request is sent.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent local settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a job or artifact the backend does not know about.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks requests or jobs that ran out of time.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks network or server failures worth retrying later.
	ErrTransient = errors.New("transient failure")
	// ErrRejected marks requests the backend refused with a client error.
	ErrRejected = errors.New("request rejected")
	// ErrExternalTool marks failures of local helper binaries such as ffprobe.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Hint returns a short operator-facing next step for err, suitable for the
// error_hint log field and CLI error output.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "check the input file and language"
	case errors.Is(err, ErrConfiguration):
		return "run `dubber config show` and fix the reported setting"
	case errors.Is(err, ErrNotFound):
		return "the job may have expired on the server"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "the server did not answer in time; retry or raise the timeout"
	case errors.Is(err, ErrRejected):
		return "the server refused the request; see the error detail"
	case errors.Is(err, ErrExternalTool):
		return "check that the helper binary is installed"
	default:
		return "check that the dubbing server is reachable"
	}
}

// Retryable reports whether err is a failure that may succeed if repeated.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
