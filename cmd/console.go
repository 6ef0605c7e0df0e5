package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const consoleHelp = `commands:
  start                         crawl from the checkpoint
  reset pos|cache|data|errors   rewind the checkpoint or clear saved state
  mode                          show the current mode
  mode -debug|-default          run without or with persistence
  concurrent                    show whether the worker pool is on
  concurrent -on|-off           toggle the worker pool
  status                        show the checkpoint and failures
  help                          show this message
  exit                          leave the console`

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Starts an interactive operator prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stopStatus := serveStatus(cmd.Context(), appInstance)
			defer stopStatus()
			return runConsole(cmd.Context(), appInstance, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runConsole reads one command per line until exit, EOF or ctx is done.
// Commands are case-insensitive. Command errors are printed and the prompt
// continues. reset data asks for confirmation first.
func runConsole(ctx context.Context, appInstance App, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "staffcrawler console, type help for commands")
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			return nil
		}
		fields := strings.Fields(strings.ToLower(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if len(fields) == 2 && fields[0] == "reset" && fields[1] == "data" && !confirm(scanner, out, "clear all saved output?") {
			fmt.Fprintln(out, "reset cancelled")
			continue
		}
		if err := dispatchConsole(ctx, appInstance, fields, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// confirm asks question and reports whether the next line is y or yes.
func confirm(scanner *bufio.Scanner, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func dispatchConsole(ctx context.Context, appInstance App, fields []string, out io.Writer) error {
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "start":
		return runStart(ctx, appInstance, out)
	case "reset":
		if len(args) != 1 {
			return fmt.Errorf("usage: reset pos|cache|data|errors")
		}
		return runReset(ctx, appInstance, args[0], out)
	case "mode":
		if len(args) == 1 {
			switch args[0] {
			case "-debug":
				appInstance.SetSave(false)
			case "-default":
				appInstance.SetSave(true)
			default:
				return fmt.Errorf("usage: mode -debug|-default")
			}
		} else if len(args) > 1 {
			return fmt.Errorf("usage: mode -debug|-default")
		}
		save, _ := appInstance.Mode()
		fmt.Fprintf(out, "mode: %s\n", modeName(save))
	case "concurrent":
		if len(args) == 1 {
			switch args[0] {
			case "-on":
				appInstance.SetConcurrent(true)
			case "-off":
				appInstance.SetConcurrent(false)
			default:
				return fmt.Errorf("usage: concurrent -on|-off")
			}
		} else if len(args) > 1 {
			return fmt.Errorf("usage: concurrent -on|-off")
		}
		_, concurrent := appInstance.Mode()
		fmt.Fprintf(out, "concurrent: %s\n", onOff(concurrent))
	case "status":
		return runStatus(appInstance, false, out)
	case "help":
		fmt.Fprintln(out, consoleHelp)
	default:
		return fmt.Errorf("unknown command %q, type help for commands", cmd)
	}
	return nil
}
