package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"

	"dubber/internal/config"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/media/ffprobe"
	"dubber/internal/services"
	"dubber/internal/workflow"
)

const defaultMaxBytes = 100 * 1024 * 1024

// Prepared is a file that passed every intake check.
type Prepared struct {
	Upload   workflow.Upload
	Path     string
	Language string
	// Duration and SourceLanguage are filled only when media probing ran.
	Duration       time.Duration
	SourceLanguage string
}

// Summary renders the one-line file preview shown before upload.
func (p Prepared) Summary() string {
	if p.Duration > 0 {
		return fmt.Sprintf("%s  Duration: %s | Size: %s", p.Upload.Filename, FormatDuration(p.Duration), FormatSize(p.Upload.Size))
	}
	return fmt.Sprintf("%s  Size: %s", p.Upload.Filename, FormatSize(p.Upload.Size))
}

// Checker runs the intake checks.
type Checker struct {
	maxBytes        int64
	defaultLanguage string
	probe           bool
	ffprobeBinary   string
	inspect         ffprobe.Inspector
	logger          *slog.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithInspector replaces the ffprobe runner.
func WithInspector(fn ffprobe.Inspector) Option {
	return func(c *Checker) {
		if fn != nil {
			c.inspect = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProbe toggles the ffprobe pass.
func WithProbe(enabled bool) Option {
	return func(c *Checker) {
		c.probe = enabled
	}
}

// WithMaxBytes overrides the upload size limit.
func WithMaxBytes(limit int64) Option {
	return func(c *Checker) {
		if limit > 0 {
			c.maxBytes = limit
		}
	}
}

// New builds a Checker from the intake section of cfg. A nil cfg uses the
// built-in limits with probing disabled.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		maxBytes:        defaultMaxBytes,
		defaultLanguage: "en",
		ffprobeBinary:   "ffprobe",
		inspect:         ffprobe.Inspect,
		logger:          logging.NewNop(),
	}
	if cfg != nil {
		if limit := cfg.MaxUploadBytes(); limit > 0 {
			c.maxBytes = limit
		}
		if lang := strings.TrimSpace(cfg.Intake.DefaultLanguage); lang != "" {
			c.defaultLanguage = lang
		}
		if bin := strings.TrimSpace(cfg.Intake.FFprobeBinary); bin != "" {
			c.ffprobeBinary = bin
		}
		c.probe = cfg.Intake.ProbeMedia
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "intake")
	return c
}

// MaxBytes reports the effective upload size limit.
func (c *Checker) MaxBytes() int64 {
	return c.maxBytes
}

// Prepare validates path and lang and returns an upload ready for
// submission. An empty lang selects the configured default.
func (c *Checker) Prepare(ctx context.Context, path, lang string) (Prepared, error) {
	if strings.TrimSpace(lang) == "" {
		lang = c.defaultLanguage
	}
	code, err := language.Normalize(lang)
	if err != nil {
		return Prepared{}, err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return Prepared{}, invalid("select", "no file selected", nil)
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Prepared{}, invalid("select", fmt.Sprintf("file %q does not exist", path), err)
		}
		return Prepared{}, invalid("select", fmt.Sprintf("stat %q", path), err)
	}
	if !info.Mode().IsRegular() {
		return Prepared{}, invalid("select", fmt.Sprintf("%q is not a regular file", path), nil)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Prepared{}, invalid("select", fmt.Sprintf("file %q is not readable", path), err)
	}
	if info.Size() == 0 {
		return Prepared{}, invalid("size", "file is empty", nil)
	}
	if info.Size() > c.maxBytes {
		return Prepared{}, invalid("size", fmt.Sprintf("File is too large. Maximum size is %s.", FormatLimit(c.maxBytes)), nil)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Prepared{}, invalid("sniff", "read file header", err)
	}
	if !isVideo(mt) {
		return Prepared{}, invalid("sniff", fmt.Sprintf("Please upload a video file (detected %s).", mt.String()), nil)
	}

	prepared := Prepared{
		Path:     path,
		Language: code,
		Upload: workflow.Upload{
			Filename:    filepath.Base(path),
			Size:        info.Size(),
			ContentType: mt.String(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		},
	}
	if c.probe {
		if err := c.probeMedia(ctx, &prepared); err != nil {
			return Prepared{}, err
		}
	}

	c.logger.Debug("intake accepted file",
		logging.String("file", prepared.Upload.Filename),
		logging.String("content_type", prepared.Upload.ContentType),
		logging.Int64("size_bytes", prepared.Upload.Size),
		logging.String("language", code),
	)
	return prepared, nil
}

func (c *Checker) probeMedia(ctx context.Context, prepared *Prepared) error {
	result, err := c.inspect(ctx, c.ffprobeBinary, prepared.Path)
	if err != nil {
		if errors.Is(err, services.ErrExternalTool) {
			logging.WarnWithContext(c.logger, "media probe skipped", "intake_probe_unavailable",
				logging.String("binary", c.ffprobeBinary),
				logging.Error(err),
			)
			return nil
		}
		return err
	}
	if result.VideoStreamCount() == 0 {
		return invalid("probe", "file has no video stream", nil)
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return invalid("probe", "could not determine video duration", nil)
	}
	prepared.Duration = time.Duration(seconds * float64(time.Second))
	prepared.SourceLanguage = result.SourceLanguage()
	return nil
}

// isVideo walks the detected type and its parents looking for video/*.
func isVideo(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

func invalid(op, msg string, err error) error {
	return services.Wrap(services.ErrValidation, "intake", op, msg, err)
}
