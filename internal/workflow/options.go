package workflow

import "dubber/internal/config"

// ConfigOptions maps the workflow section of cfg onto controller options.
func ConfigOptions(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	return []Option{
		WithPollInterval(cfg.PollInterval(), cfg.PollJitter()),
		WithCancelGrace(cfg.CancelGrace()),
		WithMaxJobAge(cfg.MaxJobAge()),
	}
}
