package config

const (
	defaultServerURL              = "http://127.0.0.1:5000"
	defaultRequestTimeout         = 30
	defaultUploadTimeout          = 600
	defaultUserAgent              = "dubber/dev"
	defaultPollInterval           = 2
	defaultCancelGrace            = 2
	defaultMaxUploadMB            = 100
	defaultTargetLanguage         = "en"
	defaultFFprobeBinary          = "ffprobe"
	defaultStateDir               = "~/.local/share/dubber"
	defaultDownloadDir            = "~/Videos/dubbed"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultNotifyRequestTimeout   = 10
	defaultMetricsTextfileName    = "dubber.prom"
	defaultConfigRelativePath     = "~/.config/dubber/config.toml"
	defaultProjectConfigFileName  = "dubber.toml"
	defaultHistoryDatabaseName    = "history.db"
	defaultSubmissionLockFileName = "dubber.lock"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			URL:            defaultServerURL,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
			UserAgent:      defaultUserAgent,
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
			CancelGrace:  defaultCancelGrace,
		},
		Intake: Intake{
			MaxUploadMB:     defaultMaxUploadMB,
			DefaultLanguage: defaultTargetLanguage,
			FFprobeBinary:   defaultFFprobeBinary,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
			Cancelled:      false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
