package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStartCmd() *cobra.Command {
	var (
		debug      bool
		concurrent bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Crawls seeds from the checkpoint onward",
		Long: `Processes every seed from the saved checkpoint to the end of the
reference dataset. --debug runs without persisting records; --concurrent
dispatches seeds to a worker pool, advancing the checkpoint as each seed is
dispatched rather than when it finishes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debug") {
				appInstance.SetSave(!debug)
			}
			if cmd.Flags().Changed("concurrent") {
				appInstance.SetConcurrent(concurrent)
			}
			stopStatus := serveStatus(cmd.Context(), appInstance)
			defer stopStatus()
			return runStart(cmd.Context(), appInstance, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "run without persisting records")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "process seeds with a worker pool")
	return cmd
}

func runStart(ctx context.Context, appInstance App, out io.Writer) error {
	sum, err := appInstance.Start(ctx)
	fmt.Fprintf(out, "processed %d seeds from position %d: %d failed, %d records\n",
		sum.Processed, sum.Start, sum.Failed, sum.Records)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	return nil
}

// serveStatus starts the status server when one is configured and returns a
// func that stops it.
func serveStatus(ctx context.Context, appInstance App) func() {
	srv := appInstance.StatusServer()
	if srv == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, appInstance.StatusAddr()); err != nil {
			appInstance.Logger().Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
