// Command kcorectl drives the process/scheduler core standalone, outside of
// any test binary: it boots a machine, replays a YAML scenario against it
// (section 8's S1, S2, S4 and S5 ship under scenarios/), and prints either the outcome of each step or a
// process-table dump. It exists so the core's end-to-end behavior can be
// demonstrated and inspected without writing a Go test for every scenario.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scall"
)

var version = "dev" // set via -ldflags "-X main.version=..." at release build time

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "kcorectl",
		Short: "Drive the process table and scheduler core from the command line",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(&verbose), newDumpCmd(&verbose), newVersionCmd())
	return root
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print kcorectl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// newRunCmd replays a scenario file and reports each step's outcome,
// exiting non-zero if any step carried an unmet expectation.
func newRunCmd(verbose *bool) *cobra.Command {
	var harts int

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Boot a machine and replay a scenario against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := newLogger(*verbose)
			scn, err := LoadScenario(args[0])
			if err != nil {
				return err
			}

			m := newMachine(harts, log)
			if _, err := m.spawnInit(); err != nil {
				return fmt.Errorf("booting init: %w", err)
			}
			log.Info("machine booted", "harts", harts, "scenario", scn.Name)

			type runOutcome struct {
				outcomes []stepOutcome
				err      error
			}
			resultCh := make(chan runOutcome, 1)
			go func() {
				outcomes, err := m.runScenario(scn)
				resultCh <- runOutcome{outcomes, err}
			}()

			var res runOutcome
			select {
			case res = <-resultCh:
			case <-ctx.Done():
				return fmt.Errorf("interrupted before scenario %s finished", scn.Name)
			}
			if res.err != nil {
				return res.err
			}

			failed := false
			for i, o := range res.outcomes {
				line := fmt.Sprintf("step %d: %s(%s)", i, o.step.Op, o.step.Process)
				switch o.step.Op {
				case "fork":
					line += fmt.Sprintf(" -> child pid %d", o.result.childPid)
				case "wait":
					line += fmt.Sprintf(" -> reaped pid %d status %d", o.result.waitPid, o.result.status)
				}
				if o.errStr != "" {
					line += fmt.Sprintf(" err=%s", o.errStr)
				}
				if o.mismatch != "" {
					failed = true
					line += fmt.Sprintf(" FAIL: %s", o.mismatch)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.table.Procdump())
			if diag := scall.Diagnostics(); diag != "" {
				fmt.Fprintln(cmd.OutOrStdout(), diag)
			}
			if trace := m.traceDump(); trace != "" {
				fmt.Fprint(cmd.OutOrStdout(), "trace:\n", trace)
			}
			if failed {
				return fmt.Errorf("scenario %s: one or more steps did not match their expectation", scn.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&harts, "harts", 2, "number of scheduler harts to run")
	return cmd
}

// newDumpCmd boots init alone and prints the process table, a quick sanity
// check that a machine can be brought up at all without running a scenario.
func newDumpCmd(verbose *bool) *cobra.Command {
	var harts int

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Boot a bare machine (just init) and print its process table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := newLogger(*verbose)
			m := newMachine(harts, log)
			if _, err := m.spawnInit(); err != nil {
				return fmt.Errorf("booting init: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), m.table.Procdump())
			return nil
		},
	}
	cmd.Flags().IntVar(&harts, "harts", 1, "number of scheduler harts to run")
	return cmd
}
