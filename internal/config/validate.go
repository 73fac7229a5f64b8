package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	parsed, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https, got %q", c.Server.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server.url must include a host, got %q", c.Server.URL)
	}
	return ensurePositiveMap(map[string]int{
		"server.request_timeout": c.Server.RequestTimeout,
		"server.upload_timeout":  c.Server.UploadTimeout,
	})
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.PollJitterMS < 0 {
		return errors.New("workflow.poll_jitter_ms must not be negative")
	}
	if c.Workflow.PollJitterMS >= c.Workflow.PollInterval*1000 {
		return errors.New("workflow.poll_jitter_ms must be smaller than workflow.poll_interval")
	}
	if c.Workflow.CancelGrace < 0 {
		return errors.New("workflow.cancel_grace must not be negative")
	}
	if c.Workflow.MaxJobAge < 0 {
		return errors.New("workflow.max_job_age must not be negative (0 disables the limit)")
	}
	if c.Workflow.MaxJobAge > 0 && c.Workflow.MaxJobAge <= c.Workflow.PollInterval {
		return errors.New("workflow.max_job_age must be greater than workflow.poll_interval")
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.MaxUploadMB <= 0 {
		return errors.New("intake.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	var bad []string
	for key, value := range values {
		if value <= 0 {
			bad = append(bad, key)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	if len(bad) == 1 {
		return fmt.Errorf("%s must be positive", bad[0])
	}
	sort.Strings(bad)
	return fmt.Errorf("%s must be positive", strings.Join(bad, ", "))
}
