package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"dubber/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create, inspect, and check the dubber configuration",
	}
	configCmd.AddCommand(
		newConfigInitCommand(ctx),
		newConfigShowCommand(ctx),
		newConfigValidateCommand(ctx),
	)
	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Long: `Write a sample configuration file.

The file goes to --path, else the global --config, else
~/.config/dubber/config.toml. A global --server value is written into
server.url so the new file points at your backend straight away.`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath, flagValue(ctx.configFlag))
			if err != nil {
				return err
			}
			if !overwrite {
				if err := refuseExisting(target); err != nil {
					return err
				}
			}
			server := flagValue(ctx.serverFlag)
			if err := config.CreateSample(target, server); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if server == "" {
				fmt.Fprintln(out, "Edit server.url (or export DUBBER_SERVER_URL) to point at your dubbing backend.")
			} else {
				fmt.Fprintf(out, "server.url set to %s; run `dubber doctor` to check it is reachable.\n", strings.TrimRight(server, "/"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// initTarget picks the first of the explicit path, the global --config value,
// and the default location.
func initTarget(explicit, global string) (string, error) {
	for _, candidate := range []string{strings.TrimSpace(explicit), global} {
		if candidate == "" {
			continue
		}
		expanded, err := config.ExpandPath(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func refuseExisting(target string) error {
	_, err := os.Stat(target)
	switch {
	case err == nil:
		return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check config path: %w", err)
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults, environment, and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# source: %s\n", configSource(ctx))
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report where dubber will talk and write",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			writeConfigSummary(cmd.OutOrStdout(), cfg, configSource(ctx))
			return nil
		},
	}
}

func configSource(ctx *commandContext) string {
	if ctx.configExists {
		return ctx.configPath
	}
	return ctx.configPath + " (not found, defaults were used)"
}

func writeConfigSummary(w io.Writer, cfg *config.Config, source string) {
	maxAge := "none"
	if cfg.Workflow.MaxJobAge > 0 {
		maxAge = cfg.MaxJobAge().String()
	}
	notify := "disabled"
	if cfg.Notifications.NtfyTopic != "" {
		notify = cfg.Notifications.NtfyTopic
	}
	fmt.Fprintln(w, renderField("Config", source))
	fmt.Fprintln(w, renderField("Backend", cfg.Server.URL))
	fmt.Fprintln(w, renderField("Polling", fmt.Sprintf("every %s, max job age %s", cfg.PollInterval(), maxAge)))
	fmt.Fprintln(w, renderField("Upload cap", strconv.Itoa(cfg.Intake.MaxUploadMB)+" MB"))
	fmt.Fprintln(w, renderField("History", cfg.HistoryPath()))
	fmt.Fprintln(w, renderField("Downloads", cfg.Paths.DownloadDir))
	fmt.Fprintln(w, renderField("Notify", notify))
	fmt.Fprintln(w, "Configuration valid")
}
