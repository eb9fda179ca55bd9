package script

import "strings"

// Kind identifies the role a script plays.
type Kind int

const (
	// Simple scripts are single files with no down counterpart.
	Simple Kind = iota

	// ReversibleUp is the forward half of a reversible pair.
	ReversibleUp

	// ReversibleDown is the undo half of a reversible pair. Down scripts are
	// never applied by a forward run.
	ReversibleDown
)

// KindFromFilename derives the kind from a script file name suffix.
func KindFromFilename(name string) Kind {
	switch {
	case strings.HasSuffix(name, ReversibleUp.Suffix()):
		return ReversibleUp
	case strings.HasSuffix(name, ReversibleDown.Suffix()):
		return ReversibleDown
	default:
		return Simple
	}
}

// IsReversible reports whether k is half of a reversible pair.
func (k Kind) IsReversible() bool {
	return k == ReversibleUp || k == ReversibleDown
}

// IsDown reports whether k is the undo half of a reversible pair.
func (k Kind) IsDown() bool {
	return k == ReversibleDown
}

// Label is the short verb shown in run reports.
func (k Kind) Label() string {
	if k == ReversibleDown {
		return "revert"
	}
	return "migrate"
}

// Suffix is the file name suffix for the kind.
func (k Kind) Suffix() string {
	switch k {
	case ReversibleUp:
		return ".up.sql"
	case ReversibleDown:
		return ".down.sql"
	default:
		return ".sql"
	}
}

// Template is the initial body written for a freshly created script file.
func (k Kind) Template() string {
	switch k {
	case ReversibleUp:
		return "-- Add up seeds script here\n"
	case ReversibleDown:
		return "-- Add down seeds script here\n"
	default:
		return "-- Add seeds script here\n"
	}
}

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case ReversibleUp:
		return "up"
	case ReversibleDown:
		return "down"
	default:
		return "unknown"
	}
}
