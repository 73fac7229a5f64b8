package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/devbackend"
)

func newDevBackendCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var step time.Duration
	var maxUploadMB int

	cmd := &cobra.Command{
		Use:   "dev-backend",
		Short: "Run an in-memory dubbing backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.commandLogger()
			if err != nil {
				return err
			}
			if step <= 0 {
				return fmt.Errorf("--step must be positive")
			}
			if maxUploadMB <= 0 {
				return fmt.Errorf("--max-upload-mb must be positive")
			}
			server := devbackend.New(
				devbackend.WithStepInterval(step),
				devbackend.WithMaxUploadBytes(int64(maxUploadMB)*1024*1024),
				devbackend.WithLogger(logger),
			)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return server.ListenAndServe(runCtx, addr, func(bound net.Addr) {
				fmt.Fprintf(out, "Development backend listening on http://%s\n", bound)
				fmt.Fprintf(out, "Point dubber at it with --server http://%s\n", bound)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().DurationVar(&step, "step", 3*time.Second, "Time between simulated progress steps")
	cmd.Flags().IntVar(&maxUploadMB, "max-upload-mb", 200, "Largest accepted upload in megabytes")
	return cmd
}
