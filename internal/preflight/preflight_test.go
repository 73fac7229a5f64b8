package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubber/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "a", "b")
	result := CheckCreatableDirectory("downloads", missing)
	if !result.Passed || !strings.Contains(result.Detail, "created on first download") {
		t.Fatalf("expected creatable pass, got %+v", result)
	}
}

func TestCheckBackend(t *testing.T) {
	ok := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ok.Close)
	if r := CheckBackend(context.Background(), ok.URL, time.Second); !r.Passed {
		t.Fatalf("404 from base url should count as reachable: %+v", r)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)
	if r := CheckBackend(context.Background(), broken.URL, time.Second); r.Passed {
		t.Fatalf("502 should fail: %+v", r)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	if r := CheckBackend(context.Background(), url, time.Second); r.Passed {
		t.Fatalf("closed server should fail: %+v", r)
	}
}

func TestCheckBinary(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if r := CheckBinary(Binary{Name: "Present", Command: present}); !r.Passed || r.Detail != present {
		t.Fatalf("expected present binary, got %+v", r)
	}
	r := CheckBinary(Binary{Name: "Missing", Command: "clearly-not-present-binary", Optional: true, Description: "probing"})
	if r.Passed || r.Failed() {
		t.Fatalf("optional missing binary should not fail the run: %+v", r)
	}
	if !strings.Contains(r.Detail, "needed for probing") {
		t.Fatalf("detail = %q", r.Detail)
	}
	if r := CheckBinary(Binary{Name: "Empty"}); r.Passed || r.Detail != "command not configured" {
		t.Fatalf("unexpected empty-command result %+v", r)
	}
}

func TestRunAll(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.URL = backend.URL
	cfg.Paths.StateDir = base
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Intake.ProbeMedia = true
	cfg.Intake.FFprobeBinary = "definitely-missing-ffprobe"
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if got := FailureCount(results); got != 1 {
		t.Fatalf("expected only ffprobe to fail, got %d failures: %+v", got, results)
	}
	if results[3].Name != "FFprobe" || !results[3].Failed() {
		t.Fatalf("ffprobe should be required when probing: %+v", results[3])
	}
	if !results[4].Optional || results[4].Passed {
		t.Fatalf("disabled notifications should be optional: %+v", results[4])
	}
}
