package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "reset pos|cache|data|errors",
		Short:     "Rewinds the checkpoint or clears saved state",
		Long:      "pos and cache rewind the checkpoint to the first seed. data clears the output sink. errors empties the error log.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pos", "cache", "data", "errors"},
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runReset(cmd.Context(), appInstance, args[0], cmd.OutOrStdout())
		},
	}
}

var errUnknownTarget = errors.New("unknown reset target")

func runReset(ctx context.Context, appInstance App, target string, out io.Writer) error {
	switch target {
	case "pos", "cache":
		if err := appInstance.ResetPosition(); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
		fmt.Fprintln(out, "checkpoint reset to position 1")
	case "data":
		if err := appInstance.ResetData(ctx); err != nil {
			return fmt.Errorf("reset data: %w", err)
		}
		fmt.Fprintln(out, "output cleared")
	case "errors":
		if err := appInstance.ResetErrors(); err != nil {
			return fmt.Errorf("reset errors: %w", err)
		}
		fmt.Fprintln(out, "error log cleared")
	default:
		return fmt.Errorf("%w %q (want pos, cache, data or errors)", errUnknownTarget, target)
	}
	return nil
}
