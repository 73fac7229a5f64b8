package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"dubber/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", Tags: map[string]string{"language": "und"}},
			{CodecType: "audio", Tags: map[string]string{"language": "eng"}},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
	if result.SourceLanguage() != "eng" {
		t.Fatalf("unexpected source language: %q", result.SourceLanguage())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if result.SourceLanguage() != "" {
		t.Fatalf("expected no source language, got %q", result.SourceLanguage())
	}
}

func TestParseKeepsRawPayload(t *testing.T) {
	payload := []byte(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080}],"format":{"duration":"12.0","format_name":"mov,mp4"}}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Streams[0].Width != 1920 || result.Format.FormatName != "mov,mp4" {
		t.Fatalf("unexpected result %+v", result)
	}
	if string(result.RawJSON()) != string(payload) {
		t.Fatal("raw payload not preserved")
	}
	if _, err := Parse([]byte("not json")); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestInspectWithStubBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\"}],\"format\":{\"duration\":\"3.5\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), stub, "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.DurationSeconds() != 3.5 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInspectFailures(t *testing.T) {
	dir := t.TempDir()
	failing := filepath.Join(dir, "ffprobe-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(context.Background(), failing, "/tmp/clip.mp4"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unreadable media, got %v", err)
	}
	if _, err := Inspect(context.Background(), filepath.Join(dir, "missing"), "/tmp/clip.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for missing binary, got %v", err)
	}
	if _, err := Inspect(context.Background(), failing, " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}
}
