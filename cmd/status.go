package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

type statusReport struct {
	Next       int                   `json:"next_position"`
	Fresh      bool                  `json:"fresh"`
	Save       bool                  `json:"save"`
	Concurrent bool                  `json:"concurrent"`
	Errors     []crawler.ErrorRecord `json:"errors"`
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows the checkpoint and recorded seed failures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runStatus(appInstance, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func runStatus(appInstance App, asJSON bool, out io.Writer) error {
	report := statusReport{}
	next, err := appInstance.NextPosition()
	switch {
	case errors.Is(err, crawler.ErrConfigMissing):
		report.Fresh = true
	case err != nil:
		return fmt.Errorf("load checkpoint: %w", err)
	}
	report.Next = next
	report.Save, report.Concurrent = appInstance.Mode()
	if report.Errors, err = appInstance.Errors(); err != nil {
		return fmt.Errorf("load error log: %w", err)
	}
	if report.Errors == nil {
		report.Errors = []crawler.ErrorRecord{}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(out, "next position: %d", report.Next)
	if report.Fresh {
		fmt.Fprint(out, " (no checkpoint yet)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "mode: %s, concurrent: %s\n", modeName(report.Save), onOff(report.Concurrent))
	fmt.Fprintf(out, "failed seeds: %d\n", len(report.Errors))
	for _, rec := range report.Errors {
		fmt.Fprintf(out, "  %d: %s\n", rec.Position, rec.Message)
	}
	return nil
}

func modeName(save bool) string {
	if save {
		return "default"
	}
	return "debug"
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
