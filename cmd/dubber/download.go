package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/config"
	"dubber/internal/fileutil"
	"dubber/internal/history"
	"dubber/internal/intake"
	"dubber/internal/services/dubbing"
)

// artifactTarget picks where a downloaded result is written. An explicit
// output wins; otherwise the dubbed name lands in the download directory,
// suffixed when a file of that name already exists.
func artifactTarget(cfg *config.Config, output, original string) (string, error) {
	if target := strings.TrimSpace(output); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		if info, err := os.Stat(expanded); err == nil && info.IsDir() {
			return fileutil.AvailablePath(filepath.Join(expanded, fileutil.DubbedName(original))), nil
		}
		return expanded, nil
	}
	return fileutil.AvailablePath(filepath.Join(cfg.Paths.DownloadDir, fileutil.DubbedName(original))), nil
}

func downloadArtifact(ctx context.Context, client *dubbing.Client, jobID, target string) (fileutil.Result, error) {
	return fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, _, err := client.Download(ctx, jobID, w)
		return err
	})
}

func printDownloadResult(w io.Writer, res fileutil.Result) {
	fmt.Fprintf(w, "Saved %s (%s)\n", res.Path, intake.FormatSize(res.Size))
	fmt.Fprintf(w, "SHA-256 %s\n", res.SHA256)
}

// originalFilename recovers the uploaded name of a job from local history,
// falling back to the backend status.
func originalFilename(ctx context.Context, cfg *config.Config, client *dubbing.Client, jobID string) string {
	if store, err := history.Open(cfg); err == nil {
		defer store.Close()
		if entry, err := store.Get(ctx, jobID); err == nil && entry.Filename != "" {
			return entry.Filename
		}
	}
	if status, err := client.Status(ctx, jobID); err == nil {
		return status.OriginalFilename
	}
	return ""
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download JOB_ID",
		Short: "Download the dubbed video of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			target, err := artifactTarget(cfg, output, originalFilename(cmd.Context(), cfg, client, jobID))
			if err != nil {
				return err
			}
			res, err := downloadArtifact(cmd.Context(), client, jobID, target)
			if err != nil {
				return fmt.Errorf("download job %s: %w", jobID, err)
			}
			printDownloadResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default: download_dir)")
	return cmd
}
