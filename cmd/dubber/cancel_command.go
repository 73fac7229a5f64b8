package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/history"
	"dubber/internal/logging"
	"dubber/internal/services/dubbing"
	"dubber/internal/workflow"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			if err := client.Cancel(cmd.Context(), jobID); err != nil {
				return fmt.Errorf("cancel job %s: %w", jobID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", jobID)

			store, err := history.Open(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "history unavailable", "history_open_failed", logging.Error(err))
				return nil
			}
			defer store.Close()
			now := time.Now().UTC()
			entry := history.Entry{
				JobID:      jobID,
				Status:     dubbing.StatusCancelled,
				Message:    workflow.CancelledMessage,
				UpdatedAt:  now,
				FinishedAt: &now,
			}
			if prev, err := store.Get(cmd.Context(), jobID); err == nil {
				entry.Progress = prev.Progress
				entry.SubmittedAt = prev.SubmittedAt
			}
			if err := store.Upsert(cmd.Context(), entry); err != nil {
				logging.WarnWithContext(logger, "history update failed", "history_write_failed",
					logging.String(logging.FieldJobID, jobID), logging.Error(err))
			}
			return nil
		},
	}
}
