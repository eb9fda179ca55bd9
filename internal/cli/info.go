package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/seeds/internal/seeder"
)

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
}

// InfoResult is the JSON payload of the info command.
type InfoResult struct {
	Source  string               `json:"source"`
	Entries []seeder.StatusEntry `json:"entries"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "List seeds and whether each is applied",
		Long: `List every seed version with its state:

  installed  applied, and the script is unchanged
  pending    not applied yet
  modified   applied, but the script changed since
  dirty      the last apply or revert failed
  missing    applied, but no script exists for it

Info does not take the seeding lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts, cmd)
		},
	}

	return cmd
}

func runInfo(opts *InfoOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ctx, cancel := opts.signalContext(cmd)
	defer cancel()

	ws, err := opts.openWorkspace(ctx, cmd, nil)
	if err != nil {
		return formatter.Fail(err, nil)
	}
	defer ws.close(opts.RootOptions)

	entries, err := ws.engine.Status(ctx, ws.registry, ws.adapter)
	if err != nil {
		return formatter.Fail(err, nil)
	}

	if formatter.JSON() {
		return formatter.Success(InfoResult{Source: ws.cfg.Source, Entries: entries})
	}
	printStatus(formatter.Writer, entries, opts.now())
	return nil
}

// printStatus writes one line per entry, matching:
//
//	20240101120000/installed create users (applied 3 hours ago, took 12ms)
func printStatus(w io.Writer, entries []seeder.StatusEntry, now time.Time) {
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "%d/%s %s", e.Version, e.State, e.Description)
		if e.Reversible {
			b.WriteString(" [reversible]")
		}
		if !e.AppliedAt.IsZero() {
			fmt.Fprintf(&b, " (applied %s", humanize.RelTime(e.AppliedAt, now, "ago", "from now"))
			if e.ExecutionTime > 0 {
				fmt.Fprintf(&b, ", took %s", e.ExecutionTime)
			}
			b.WriteString(")")
		}
		fmt.Fprintln(w, b.String())
	}
}
