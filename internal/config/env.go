package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "dubber"

// envOverrides lists the settings that may be supplied as DUBBER_* variables.
// Unset variables leave the file/default value untouched.
type envOverrides struct {
	ServerURL    string `envconfig:"SERVER_URL"`
	StateDir     string `envconfig:"STATE_DIR"`
	DownloadDir  string `envconfig:"DOWNLOAD_DIR"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogFormat    string `envconfig:"LOG_FORMAT"`
	NtfyTopic    string `envconfig:"NTFY_TOPIC"`
	PollInterval int    `envconfig:"POLL_INTERVAL"`
	MaxJobAge    int    `envconfig:"MAX_JOB_AGE"`
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if v := strings.TrimSpace(env.ServerURL); v != "" {
		c.Server.URL = v
	}
	if v := strings.TrimSpace(env.StateDir); v != "" {
		c.Paths.StateDir = v
	}
	if v := strings.TrimSpace(env.DownloadDir); v != "" {
		c.Paths.DownloadDir = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(env.LogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := strings.TrimSpace(env.NtfyTopic); v != "" {
		c.Notifications.NtfyTopic = v
	}
	if env.PollInterval > 0 {
		c.Workflow.PollInterval = env.PollInterval
	}
	if env.MaxJobAge > 0 {
		c.Workflow.MaxJobAge = env.MaxJobAge
	}
	return nil
}
