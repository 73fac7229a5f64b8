package dubbing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"dubber/internal/services"
)

// Job status values reported by the backend.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// SubmitRequest describes one upload.
type SubmitRequest struct {
	Filename string
	Content  io.Reader
	Language string
}

type submitResponse struct {
	JobID   string `json:"job_id" validate:"required"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the body of GET /status/{job_id}.
type StatusResponse struct {
	Status           string `json:"status" yaml:"status" validate:"required,oneof=pending running completed failed cancelled"`
	Progress         int    `json:"progress" yaml:"progress"`
	Message          string `json:"message" yaml:"message"`
	OriginalFilename string `json:"original_filename,omitempty" yaml:"original_filename,omitempty"`
}

// Terminal reports whether the status ends the job.
func (s StatusResponse) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// normalizeStatus folds the legacy "processing" value into running.
// normalizer is implemented by response bodies that fold backend spellings
// into canonical values before validation.
type normalizer interface {
	normalize()
}

func (r *StatusResponse) normalize() {
	r.Status = normalizeStatus(r.Status)
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "processing" {
		return StatusRunning
	}
	return status
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// errorDetail extracts the "error" or "message" member of a JSON error body,
// falling back to the raw text.
func errorDetail(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return body
}

// HTTPStatusError reports a non-2xx reply from the backend.
type HTTPStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	detail := errorDetail(e.Body)
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("dubbing %s: http %d: %s", e.Op, e.StatusCode, detail)
}

// Unwrap classifies the reply so callers can use errors.Is with the
// services markers.
func (e *HTTPStatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return services.ErrNotFound
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500:
		return services.ErrTransient
	default:
		return services.ErrRejected
	}
}
