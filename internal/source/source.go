// Package source resolves scripts from a directory of SQL files.
//
// Files are named {version}_{description}{suffix}, where suffix is .sql for
// simple scripts and .up.sql / .down.sql for reversible pairs. Only regular
// top-level files ending in .sql are considered; hidden files and
// subdirectories are skipped.
package source

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/seeds/internal/script"
)

// FS resolves scripts from the root of a file system.
type FS struct {
	fsys   fs.FS
	digest script.Digest
	origin string
}

var _ script.Source = (*FS)(nil)

// NewFS returns a source reading from fsys. A nil digest means SHA384.
func NewFS(fsys fs.FS, d script.Digest) *FS {
	if d == nil {
		d = script.SHA384
	}
	return &FS{fsys: fsys, digest: d, origin: "."}
}

// Dir returns a source reading from the directory at path.
func Dir(path string, d script.Digest) *FS {
	s := NewFS(os.DirFS(path), d)
	s.origin = path
	return s
}

// Origin returns the directory the source reads from, for messages.
func (s *FS) Origin() string {
	return s.origin
}

// Resolve reads every script file, ordered by version then kind. Malformed
// file names are reported together.
func (s *FS) Resolve(ctx context.Context) ([]script.Script, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.origin, err)
	}

	var (
		scripts []script.Script
		errs    *multierror.Error
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if !entry.Type().IsRegular() && entry.Type()&fs.ModeSymlink == 0 {
			continue
		}

		version, description, kind, err := script.ParseFilename(name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		body, err := fs.ReadFile(s.fsys, name)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}

		scripts = append(scripts, script.New(version, description, kind, string(body), s.digest))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(scripts, func(a, b script.Script) int {
		if c := cmp.Compare(a.Version, b.Version); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return scripts, nil
}
