// Package registry holds the validated, version-ordered set of scripts for
// a single run.
package registry

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/seeds/internal/script"
)

// Registry is an immutable, version-sorted view over resolved scripts.
// Safe for concurrent reads.
type Registry struct {
	scripts       []script.Script
	versions      map[int64]struct{}
	ignoreMissing bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithIgnoreMissing relaxes the applied-but-missing check performed by the
// seeder: applied versions absent from the registry are disregarded.
func WithIgnoreMissing(ignore bool) Option {
	return func(r *Registry) {
		r.ignoreMissing = ignore
	}
}

// New builds a registry from resolved scripts and validates it.
// The input slice is copied; callers may reuse it.
func New(scripts []script.Script, opts ...Option) (*Registry, error) {
	sorted := slices.Clone(scripts)
	slices.SortStableFunc(sorted, func(a, b script.Script) int {
		if c := cmp.Compare(a.Version, b.Version); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})

	r := &Registry{
		scripts:  sorted,
		versions: make(map[int64]struct{}, len(sorted)),
	}
	for _, s := range sorted {
		r.versions[s.Version] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks kind mixing, (version, kind) uniqueness and up/down pairing.
func (r *Registry) Validate() error {
	var simple, reversible *script.Script
	for i := range r.scripts {
		s := &r.scripts[i]
		if s.Kind.IsReversible() {
			if reversible == nil {
				reversible = s
			}
		} else if simple == nil {
			simple = s
		}
	}
	if simple != nil && reversible != nil {
		return &MixedReversibleError{SimpleVersion: simple.Version, ReversibleVersion: reversible.Version}
	}

	// Scripts are sorted by (version, kind), so duplicates are adjacent.
	for i := 1; i < len(r.scripts); i++ {
		prev, cur := r.scripts[i-1], r.scripts[i]
		if prev.Version == cur.Version && prev.Kind == cur.Kind {
			return &DuplicateVersionError{Version: cur.Version, Kind: cur.Kind}
		}
	}

	ups := make(map[int64]bool)
	for _, s := range r.scripts {
		if s.Kind == script.ReversibleUp {
			ups[s.Version] = true
		}
	}
	for _, s := range r.scripts {
		if s.Kind == script.ReversibleDown && !ups[s.Version] {
			return &UnpairedDownError{Version: s.Version}
		}
	}

	return nil
}

// Iterate yields scripts in ascending version order. Each call starts over.
func (r *Registry) Iterate() iter.Seq[script.Script] {
	return func(yield func(script.Script) bool) {
		for _, s := range r.scripts {
			if !yield(s) {
				return
			}
		}
	}
}

// Descending yields scripts in descending version order.
func (r *Registry) Descending() iter.Seq[script.Script] {
	return func(yield func(script.Script) bool) {
		for i := len(r.scripts) - 1; i >= 0; i-- {
			if !yield(r.scripts[i]) {
				return
			}
		}
	}
}

// Has reports whether any script carries version.
func (r *Registry) Has(version int64) bool {
	_, ok := r.versions[version]
	return ok
}

// Len returns the number of scripts, counting both halves of a pair.
func (r *Registry) Len() int {
	return len(r.scripts)
}

// Scripts returns a copy of the ordered scripts.
func (r *Registry) Scripts() []script.Script {
	return slices.Clone(r.scripts)
}

// IgnoreMissing reports whether applied versions absent from the registry
// should be disregarded.
func (r *Registry) IgnoreMissing() bool {
	return r.ignoreMissing
}

// Reversible reports whether the registry holds reversible pairs.
// An empty registry is neither.
func (r *Registry) Reversible() bool {
	return len(r.scripts) > 0 && r.scripts[0].Kind.IsReversible()
}

// Load resolves src and builds a registry from the result.
func Load(ctx context.Context, src script.Source, opts ...Option) (*Registry, error) {
	scripts, err := src.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("while resolving seeds: %w", err)
	}
	return New(scripts, opts...)
}
