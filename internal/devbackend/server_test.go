package devbackend_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/devbackend"
	"dubber/internal/services"
	"dubber/internal/services/dubbing"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBackend(t *testing.T, opts ...devbackend.Option) (*dubbing.Client, *clock, string) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	base := []devbackend.Option{
		devbackend.WithClock(clk.Now),
		devbackend.WithStepInterval(time.Second),
		devbackend.WithIDFunc(func() string { return "job-1" }),
	}
	server := httptest.NewServer(devbackend.New(append(base, opts...)...))
	t.Cleanup(server.Close)
	client, err := dubbing.NewClient(dubbing.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, clk, server.URL
}

func submit(t *testing.T, client *dubbing.Client, name string) string {
	t.Helper()
	id, err := client.Submit(context.Background(), dubbing.SubmitRequest{
		Filename: name,
		Content:  strings.NewReader("frames"),
		Language: "es",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func TestJobAdvancesThroughSteps(t *testing.T) {
	client, clk, _ := newBackend(t)
	id := submit(t, client, "talk.mp4")
	ctx := context.Background()

	status, err := client.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != dubbing.StatusPending || status.Progress != 0 {
		t.Fatalf("expected pending job, got %+v", status)
	}

	want := []int{10, 20, 40, 60, 80}
	for _, progress := range want {
		clk.Advance(time.Second)
		status, err = client.Status(ctx, id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Status != dubbing.StatusRunning || status.Progress != progress {
			t.Fatalf("expected running at %d, got %+v", progress, status)
		}
		if status.OriginalFilename != "talk.mp4" {
			t.Fatalf("original filename = %q", status.OriginalFilename)
		}
	}

	clk.Advance(time.Second)
	status, err = client.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != dubbing.StatusCompleted || status.Progress != 100 {
		t.Fatalf("expected completed job, got %+v", status)
	}

	var buf bytes.Buffer
	n, name, err := client.Download(ctx, id, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("frames")) || buf.String() != "frames" || name != "dubbed_talk.mp4" {
		t.Fatalf("unexpected download %d %q %q", n, buf.String(), name)
	}
}

func TestDownloadBeforeCompletionIsNotFound(t *testing.T) {
	client, _, _ := newBackend(t)
	id := submit(t, client, "talk.mp4")
	var buf bytes.Buffer
	if _, _, err := client.Download(context.Background(), id, &buf); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestForcedFailure(t *testing.T) {
	client, clk, url := newBackend(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField(dubbing.LanguageField, "fr")
	_ = mw.WriteField("fail_at", "50")
	part, _ := mw.CreateFormFile(dubbing.FileField, "talk.mkv")
	_, _ = part.Write([]byte("frames"))
	_ = mw.Close()
	resp, err := http.Post(url+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	clk.Advance(3 * time.Second)
	status, err := client.Status(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Progress != 40 || status.Status != dubbing.StatusRunning {
		t.Fatalf("expected running at 40, got %+v", status)
	}
	clk.Advance(time.Second)
	status, err = client.Status(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != dubbing.StatusFailed || status.Progress != 60 {
		t.Fatalf("expected failure at 60, got %+v", status)
	}
	if !strings.Contains(status.Message, "simulated failure at 50%") {
		t.Fatalf("message = %q", status.Message)
	}

	// Terminal states stick.
	clk.Advance(time.Minute)
	status, _ = client.Status(context.Background(), "job-1")
	if status.Status != dubbing.StatusFailed {
		t.Fatalf("failed job changed to %+v", status)
	}
}

func TestCancel(t *testing.T) {
	client, clk, _ := newBackend(t)
	id := submit(t, client, "talk.mp4")
	clk.Advance(2 * time.Second)

	if err := client.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	status, err := client.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != dubbing.StatusCancelled || status.Progress != 20 {
		t.Fatalf("expected cancelled at 20, got %+v", status)
	}

	err = client.Cancel(context.Background(), id)
	if !errors.Is(err, services.ErrRejected) || !strings.Contains(err.Error(), "Job already cancelled") {
		t.Fatalf("expected rejection for second cancel, got %v", err)
	}
	if err := client.Cancel(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown job, got %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	client, _, url := newBackend(t, devbackend.WithMaxUploadBytes(1024))

	_, err := client.Submit(context.Background(), dubbing.SubmitRequest{Filename: "notes.txt", Content: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "File type not allowed") {
		t.Fatalf("expected file type rejection, got %v", err)
	}

	_, err = client.Submit(context.Background(), dubbing.SubmitRequest{Filename: "big.mp4", Content: bytes.NewReader(make([]byte, 4096))})
	var statusErr *dubbing.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}

	resp, err := http.Post(url+"/upload", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing part, got %d", resp.StatusCode)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	client, _, _ := newBackend(t)
	if _, err := client.Status(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, _, url := newBackend(t)
	req, _ := http.NewRequest(http.MethodOptions, url+"/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := devbackend.New()
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a.String() })
	}()
	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	client, err := dubbing.NewClient(dubbing.Config{BaseURL: "http://" + addr})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Status(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected live server, got %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
