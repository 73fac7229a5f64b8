package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server describes the dubbing backend.
type Server struct {
	URL            string `toml:"url"`
	RequestTimeout int    `toml:"request_timeout"`
	UploadTimeout  int    `toml:"upload_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Workflow contains job polling cadence and lifecycle timing.
type Workflow struct {
	PollInterval int `toml:"poll_interval"`
	PollJitterMS int `toml:"poll_jitter_ms"`
	CancelGrace  int `toml:"cancel_grace"`
	// MaxJobAge stops polling and fails the job after this many seconds.
	// Zero disables the limit.
	MaxJobAge int `toml:"max_job_age"`
}

// Intake contains local checks applied before a file is submitted.
type Intake struct {
	MaxUploadMB     int    `toml:"max_upload_mb"`
	DefaultLanguage string `toml:"default_language"`
	ProbeMedia      bool   `toml:"probe_media"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
}

// Paths contains local directories.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
	Cancelled      bool   `toml:"cancelled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls the Prometheus textfile export.
type Metrics struct {
	Enabled      bool   `toml:"enabled"`
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for dubber.
//
// Configuration sections by subsystem:
//   - Server: backend URL and request timeouts
//   - Workflow: poll interval, jitter, cancel grace period, max job age
//   - Intake: upload size limit, default target language, ffprobe checks
//   - Paths: state (history, lock) and download directories
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Metrics: Prometheus textfile export
type Config struct {
	Server        Server        `toml:"server"`
	Workflow      Workflow      `toml:"workflow"`
	Intake        Intake        `toml:"intake"`
	Paths         Paths         `toml:"paths"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigRelativePath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Environment overrides are applied after the file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigRelativePath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigFileName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory. The download directory is
// created lazily when an artifact is saved.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// HistoryPath is the SQLite database recording submitted jobs.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, defaultHistoryDatabaseName)
}

// LockPath is the flock file guarding against concurrent submissions.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, defaultSubmissionLockFileName)
}

// PollInterval returns the status poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// PollJitter returns the standard deviation applied to each poll tick.
func (c *Config) PollJitter() time.Duration {
	return time.Duration(c.Workflow.PollJitterMS) * time.Millisecond
}

// CancelGrace returns how long a cancellation message stays visible before
// the client returns to the upload view.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Workflow.CancelGrace) * time.Second
}

// MaxJobAge returns the client-side job age limit, zero when disabled.
func (c *Config) MaxJobAge() time.Duration {
	return time.Duration(c.Workflow.MaxJobAge) * time.Second
}

// RequestTimeout bounds status, cancel, and download-header requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// UploadTimeout bounds the multipart submission request.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Server.UploadTimeout) * time.Second
}

// MaxUploadBytes converts the intake limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Intake.MaxUploadMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path. A non-empty
// serverURL replaces the sample's server.url once it passes validation.
func CreateSample(path, serverURL string) error {
	content, err := renderSample(serverURL)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func renderSample(serverURL string) (string, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return sampleConfig, nil
	}
	candidate := Default()
	candidate.Server.URL = serverURL
	if err := candidate.validateServer(); err != nil {
		return "", err
	}

	lines := strings.Split(sampleConfig, "\n")
	section := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			section = trimmed
			continue
		}
		if section == "[server]" && strings.HasPrefix(trimmed, "url =") {
			lines[i] = fmt.Sprintf("url = %q", serverURL)
			return strings.Join(lines, "\n"), nil
		}
	}
	return "", errors.New("sample config has no server.url entry")
}
