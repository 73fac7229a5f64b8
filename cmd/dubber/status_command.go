package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/services/dubbing"
	"dubber/internal/stages"
)

type jobStatusView struct {
	JobID            string `json:"job_id" yaml:"job_id"`
	Status           string `json:"status" yaml:"status"`
	Progress         int    `json:"progress" yaml:"progress"`
	Stage            string `json:"stage" yaml:"stage"`
	Message          string `json:"message,omitempty" yaml:"message,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty" yaml:"original_filename,omitempty"`
	DownloadURL      string `json:"download_url,omitempty" yaml:"download_url,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON, asYAML bool

	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the backend status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFromFlags(asJSON, asYAML)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			resp, err := client.Status(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("status of job %s: %w", jobID, err)
			}

			progress := stages.Clamp(resp.Progress)
			view := jobStatusView{
				JobID:            jobID,
				Status:           resp.Status,
				Progress:         progress,
				Stage:            stages.For(progress).Label(),
				Message:          resp.Message,
				OriginalFilename: resp.OriginalFilename,
			}
			if resp.Status == dubbing.StatusCompleted {
				view.DownloadURL = client.DownloadURL(jobID)
			}
			if handled, err := writeStructured(cmd, format, view); handled {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderField("Job", view.JobID))
			if view.OriginalFilename != "" {
				fmt.Fprintln(out, renderField("File", view.OriginalFilename))
			}
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(view.Status), view.Status, colorize))
			fmt.Fprintln(out, renderField("Progress", fmt.Sprintf("%d%% (%s)", view.Progress, view.Stage)))
			if view.Message != "" {
				fmt.Fprintln(out, renderField("Message", view.Message))
			}
			if view.DownloadURL != "" {
				fmt.Fprintln(out, renderField("Download", view.DownloadURL))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML")
	return cmd
}

// progressBar renders a fixed-width bar for table cells.
func progressBar(percent, width int) string {
	percent = stages.Clamp(percent)
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3d%%", percent)
}
