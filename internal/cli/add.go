package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/script"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Reversible bool
}

// AddResult is the JSON payload of the add command.
type AddResult struct {
	Version int64    `json:"version"`
	Files   []string `json:"files"`
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Create a new seed script",
		Long: `Create a new seed script named after the current UTC time.

With --reversible, an .up.sql/.down.sql pair is created instead. A directory
holds either simple or reversible scripts, never both.

Example:
  seeds add "create users"
  seeds add -r "seed countries"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Reversible, "reversible", "r", false, "create an up/down pair")

	return cmd
}

func runAdd(opts *AddOptions, description string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	description = strings.TrimSpace(description)
	if description == "" {
		return formatter.Fail(stage(ErrCodeSource, fmt.Errorf("description must not be empty")), nil)
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.Fail(stage(ErrCodeConfig, err), nil)
	}

	if err := os.MkdirAll(cfg.Source, 0o755); err != nil {
		return formatter.Fail(stage(ErrCodeWrite, fmt.Errorf("unable to create seeds directory: %w", err)), nil)
	}

	reg, err := opts.loadRegistry(cmd.Context(), cfg)
	if err != nil {
		return formatter.Fail(err, nil)
	}
	version := script.VersionAt(opts.now())
	if reg.Len() > 0 && reg.Reversible() != opts.Reversible {
		return formatter.Fail(stage(ErrCodeSource, mixError(reg, version, opts.Reversible)), nil)
	}

	kinds := []script.Kind{script.Simple}
	if opts.Reversible {
		kinds = []script.Kind{script.ReversibleUp, script.ReversibleDown}
	}

	if err := checkDescription(description, kinds); err != nil {
		return formatter.Fail(stage(ErrCodeSource, err), nil)
	}

	result := AddResult{Version: version}
	for _, kind := range kinds {
		path := filepath.Join(cfg.Source, script.Filename(version, description, kind))
		if err := createScript(path, kind); err != nil {
			return formatter.Fail(stage(ErrCodeWrite, err), result)
		}
		result.Files = append(result.Files, path)
		if !formatter.JSON() {
			fmt.Fprintf(formatter.Writer, "Creating %s\n", path)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return nil
}

// checkDescription rejects descriptions whose file names would not resolve
// back to the kind they were created as, e.g. "x.up" for a simple script.
func checkDescription(description string, kinds []script.Kind) error {
	if strings.ContainsAny(description, `/\`) {
		return fmt.Errorf("description %q must not contain path separators", description)
	}
	for _, kind := range kinds {
		name := script.Filename(1, description, kind)
		if _, _, got, err := script.ParseFilename(name); err != nil || got != kind {
			return fmt.Errorf("description %q would be read back as a %s script", description, got)
		}
	}
	return nil
}

// mixError describes adding a script of the wrong kind at version to reg.
func mixError(reg *registry.Registry, version int64, reversible bool) error {
	existing := reg.Scripts()[0].Version
	if reversible {
		return &registry.MixedReversibleError{SimpleVersion: existing, ReversibleVersion: version}
	}
	return &registry.MixedReversibleError{SimpleVersion: version, ReversibleVersion: existing}
}

// createScript writes the kind's template to path, refusing to overwrite.
func createScript(path string, kind script.Kind) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create seeds file: %w", err)
	}
	if _, err := f.WriteString(kind.Template()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write seeds file: %w", err)
	}
	return f.Close()
}
