package dubbing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dubber/internal/services"
	"dubber/internal/services/dubbing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...dubbing.Option) *dubbing.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := dubbing.NewClient(dubbing.Config{BaseURL: server.URL + "/", UserAgent: "dubber-test"}, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSubmitSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get(dubbing.RequestIDHeader); got != "req-1" {
			t.Errorf("request id = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "dubber-test" {
			t.Errorf("user agent = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue(dubbing.LanguageField); got != "zh-CN" {
			t.Errorf("language = %q", got)
		}
		file, header, err := r.FormFile(dubbing.FileField)
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "clip.mp4" || string(data) != "frames" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42", "status": "pending"})
	}, dubbing.WithRequestIDFunc(func() string { return "req-1" }))

	id, err := client.Submit(context.Background(), dubbing.SubmitRequest{
		Filename: "/tmp/clip.mp4",
		Content:  strings.NewReader("frames"),
		Language: "zh-CN",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "job-42" {
		t.Fatalf("job id = %q", id)
	}
}

func TestSubmitRejectsMissingJobID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})
	_, err := client.Submit(context.Background(), dubbing.SubmitRequest{Filename: "a.mp4", Content: strings.NewReader("x")})
	if !errors.Is(err, dubbing.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestSubmitHTTPErrorCarriesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"File type not allowed"}`))
	})
	_, err := client.Submit(context.Background(), dubbing.SubmitRequest{Filename: "a.txt", Content: strings.NewReader("x")})
	var statusErr *dubbing.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "File type not allowed") {
		t.Fatalf("expected server detail in %q", err)
	}
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejected marker, got %v", err)
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.Submit(context.Background(), dubbing.SubmitRequest{Filename: "a.mp4"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil content, got %v", err)
	}
	if _, err := client.Submit(context.Background(), dubbing.SubmitRequest{Content: strings.NewReader("x")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty filename, got %v", err)
	}
}

func TestStatusDecodesAndNormalizes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"processing", dubbing.StatusRunning},
		{" Processing ", dubbing.StatusRunning},
		{"Running", dubbing.StatusRunning},
		{"COMPLETED", dubbing.StatusCompleted},
		{"pending", dubbing.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/status/job-1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, _ = fmt.Fprintf(w, `{"status":%q,"progress":55,"message":"Generating speech","original_filename":"talk.mp4"}`, tt.raw)
			})
			status, err := client.Status(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if status.Status != tt.want || status.Progress != 55 || status.OriginalFilename != "talk.mp4" {
				t.Fatalf("unexpected status %+v", status)
			}
			if status.Terminal() != (tt.want == dubbing.StatusCompleted) {
				t.Fatalf("Terminal() = %v for %s", status.Terminal(), tt.want)
			}
		})
	}
}

func TestStatusRejectsUnknownStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"exploded","progress":10}`))
	})
	_, err := client.Status(context.Background(), "job-1")
	if !errors.Is(err, dubbing.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestStatusRejectsInvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	if _, err := client.Status(context.Background(), "job-1"); !errors.Is(err, dubbing.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestStatusClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		code   int
		marker error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusInternalServerError, services.ErrTransient},
		{http.StatusGatewayTimeout, services.ErrTimeout},
		{http.StatusForbidden, services.ErrRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := client.Status(context.Background(), "job-1")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := dubbing.NewClient(dubbing.Config{BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Status(context.Background(), "job-1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("transport failures should be retryable")
	}
}

func TestStatusTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := dubbing.NewClient(dubbing.Config{BaseURL: server.URL, RequestTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Status(context.Background(), "job-1")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCancelReportsOutcome(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/cancel/job-7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls == 2 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Job already completed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Job cancelled successfully"}`))
	})
	if err := client.Cancel(context.Background(), "job-7"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	err := client.Cancel(context.Background(), "job-7")
	if err == nil || !strings.Contains(err.Error(), "Job already completed") {
		t.Fatalf("expected rejection detail, got %v", err)
	}
}

func TestDownloadStreamsArtifact(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/job-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="dubbed_talk.mp4"`)
		_, _ = w.Write([]byte("dubbed-bytes"))
	})
	var buf bytes.Buffer
	n, name, err := client.Download(context.Background(), "job-9", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("dubbed-bytes")) || buf.String() != "dubbed-bytes" {
		t.Fatalf("unexpected payload %d %q", n, buf.String())
	}
	if name != "dubbed_talk.mp4" {
		t.Fatalf("name = %q", name)
	}
}

func TestDownloadURLEscapesJobID(t *testing.T) {
	client, err := dubbing.NewClient(dubbing.Config{BaseURL: "http://backend.local:5000/api/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := client.DownloadURL("a b"); got != "http://backend.local:5000/api/download/a%20b" {
		t.Fatalf("DownloadURL = %q", got)
	}
	if got := client.BaseURL(); got != "http://backend.local:5000/api" {
		t.Fatalf("BaseURL = %q", got)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5000", "://nope"} {
		if _, err := dubbing.NewClient(dubbing.Config{BaseURL: raw}); !errors.Is(err, services.ErrConfiguration) {
			t.Errorf("NewClient(%q) = %v, want configuration error", raw, err)
		}
	}
}

func TestRequestIDFromContextIsPropagated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(dubbing.RequestIDHeader); got != "ctx-id" {
			t.Errorf("request id = %q", got)
		}
		_, _ = w.Write([]byte(`{"status":"completed","progress":100,"message":"done"}`))
	})
	ctx := services.WithRequestID(context.Background(), "ctx-id")
	status, err := client.Status(ctx, "job-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Terminal() {
		t.Fatal("completed should be terminal")
	}
}
