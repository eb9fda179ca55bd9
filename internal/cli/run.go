package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/config"
	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/seeder"
)

// RunOptions holds flags shared by the run and revert commands.
type RunOptions struct {
	*RootOptions
	DryRun        bool
	IgnoreMissing bool
	MetricsFile   string
	LockTimeout   time.Duration
}

type engineOp func(e *seeder.Engine, ctx context.Context, reg *registry.Registry, a backend.Adapter, dryRun bool) (*seeder.Report, error)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply all pending seeds",
		Long: `Apply every pending seed script in version order.

Each script runs in its own transaction. A failing script is rolled back and
recorded as dirty; later runs refuse to continue until the row is removed
from the tracking table by hand.

Example:
  seeds run -D sqlite:app.db
  seeds run --dry-run --source db/seeds`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeeds(opts, cmd, (*seeder.Engine).Run)
		},
	}
	addRunFlags(cmd, opts)

	return cmd
}

// NewRevertCommand creates the revert command.
func NewRevertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Revert the latest applied seed",
		Long: `Revert the most recently applied reversible seed by running its
.down.sql script. Only one version is reverted per invocation.

Example:
  seeds revert -D sqlite:app.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeeds(opts, cmd, (*seeder.Engine).Revert)
		},
	}
	addRunFlags(cmd, opts)

	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list the scripts that would run without executing them")
	cmd.Flags().BoolVar(&opts.IgnoreMissing, "ignore-missing", false, "ignore applied versions that have no script")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().DurationVar(&opts.LockTimeout, "lock-timeout", 0, "how long to wait for another seeder (0 waits until interrupted)")
}

func runSeeds(opts *RunOptions, cmd *cobra.Command, op engineOp) error {
	formatter := opts.formatter(cmd)

	ctx, cancel := opts.signalContext(cmd)
	defer cancel()

	ws, err := opts.openWorkspace(ctx, cmd, func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("ignore-missing") {
			cfg.IgnoreMissing = opts.IgnoreMissing
		}
		if flags.Changed("metrics-file") {
			cfg.MetricsFile = opts.MetricsFile
		}
		if flags.Changed("lock-timeout") {
			cfg.LockTimeout = opts.LockTimeout
		}
	})
	if err != nil {
		return formatter.Fail(err, nil)
	}
	defer ws.close(opts.RootOptions)

	formatter.VerboseLog("Resolved %d script(s) from %s", ws.registry.Len(), ws.cfg.Source)

	report, err := op(ws.engine, ctx, ws.registry, ws.adapter, opts.DryRun)
	formatter.RunID = report.RunID
	if err != nil {
		if !formatter.JSON() {
			printReport(formatter.Writer, report)
		}
		return formatter.Fail(err, report)
	}

	if formatter.JSON() {
		return formatter.Success(report)
	}
	printReport(formatter.Writer, report)
	return nil
}

// printReport writes one line per step, matching:
//
//	Applied 20240101120000/migrate create users (1.2ms)
func printReport(w io.Writer, report *seeder.Report) {
	if report == nil {
		return
	}
	for _, step := range report.Steps {
		fmt.Fprintf(w, "%s %d/%s %s (%s)\n", actionText(step.Action), step.Version, step.Label, step.Description, step.Elapsed)
	}
	if report.NothingToRevert {
		fmt.Fprintln(w, "No seeds available to revert")
	}
}

func actionText(a seeder.Action) string {
	switch a {
	case seeder.ActionApplied:
		return "Applied"
	case seeder.ActionCanApply:
		return "Can apply"
	case seeder.ActionReverted:
		return "Reverted"
	case seeder.ActionCanRevert:
		return "Can revert"
	default:
		return string(a)
	}
}
