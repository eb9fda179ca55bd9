// Package script defines the data model for versioned SQL change scripts.
//
// A Script is one unit of change: either a Simple script, or one half of a
// Reversible pair (ReversibleUp / ReversibleDown sharing a version). Scripts
// are produced once by a Source and never mutated afterwards.
//
// # Naming
//
// Scripts on disk follow the convention
//
//	{version}_{description}.sql        Simple
//	{version}_{description}.up.sql     ReversibleUp
//	{version}_{description}.down.sql   ReversibleDown
//
// where version is a creation timestamp formatted YYYYMMDDHHMMSS. Versions are
// the sole ordering and identity key; descriptions are labels only.
//
// # Checksums
//
// Every Script carries a fixed-width digest of its body computed at resolution
// time by an injected Digest. The digest is compared against the snapshot taken
// when the script was applied to detect drift.
package script
