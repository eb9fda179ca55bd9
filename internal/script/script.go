package script

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// VersionLayout formats a creation time as a sortable integer version.
const VersionLayout = "20060102150405"

// Script is a single resolved change script.
// Scripts are immutable once produced by a Source.
type Script struct {
	// Version is the ordering and identity key, derived from creation time.
	Version int64

	// Description is a human-readable label. Not unique.
	Description string

	Kind Kind

	// Checksum is the digest of Body computed at resolution time.
	Checksum []byte

	// Body is the executable SQL text.
	Body string
}

// Source produces an ordered sequence of resolved scripts.
type Source interface {
	Resolve(ctx context.Context) ([]Script, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Script, error)

// Resolve calls f(ctx).
func (f SourceFunc) Resolve(ctx context.Context) ([]Script, error) {
	return f(ctx)
}

// New builds a Script, computing its checksum with d.
func New(version int64, description string, kind Kind, body string, d Digest) Script {
	return Script{
		Version:     version,
		Description: description,
		Kind:        kind,
		Checksum:    d.Sum([]byte(body)),
		Body:        body,
	}
}

// VersionAt returns the version for a script created at t (UTC).
func VersionAt(t time.Time) int64 {
	// A formatted timestamp is always 14 decimal digits.
	v, _ := strconv.ParseInt(t.UTC().Format(VersionLayout), 10, 64)
	return v
}

func (s Script) String() string {
	return fmt.Sprintf("%d/%s %s", s.Version, s.Kind.Label(), s.Description)
}
