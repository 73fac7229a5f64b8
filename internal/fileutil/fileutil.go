package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DubbedPrefix is prepended to the original file name of a downloaded result.
const DubbedPrefix = "dubbed_"

// DubbedName returns the download name for an uploaded file.
func DubbedName(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "video.mp4"
	}
	if strings.HasPrefix(base, DubbedPrefix) {
		return base
	}
	return DubbedPrefix + base
}

// AvailablePath returns path when nothing exists there, otherwise the first
// "name (N).ext" variant that is free.
func AvailablePath(path string) string {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Result describes a file written by WriteAtomic.
type Result struct {
	Path   string
	Size   int64
	SHA256 string
}

// WriteAtomic streams fill into a temporary file beside dst and renames it
// into place only after fill succeeds and the written size matches what
// reached the disk. The temporary file is removed on any failure.
func WriteAtomic(dst string, mode os.FileMode, fill func(io.Writer) error) (Result, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	counter := &countingWriter{}
	if err := fill(io.MultiWriter(tmp, hasher, counter)); err != nil {
		return Result{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp file: %w", err)
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat temp file: %w", err)
	}
	if info.Size() != counter.n {
		return Result{}, fmt.Errorf("write size mismatch: wrote %d bytes, file has %d bytes", counter.n, info.Size())
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return Result{}, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Result{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return Result{Path: dst, Size: counter.n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
