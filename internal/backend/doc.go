// Package backend defines the contract between the seeder engine and a
// database engine.
//
// An Adapter owns the tracking table: it creates it, lists and records
// applied scripts, executes script bodies, and provides the lock that
// serializes concurrent seeders. The engine never touches the database
// directly.
//
// # Dirty markers
//
// When Apply or Revert fails while executing a script body, the adapter
// leaves an AppliedRecord with Success=false for that version. The marker
// survives the failed invocation and blocks every later run until an
// operator repairs the database and removes or fixes the row by hand.
//
// # Tracking table
//
//	version        BIGINT PRIMARY KEY
//	description    TEXT
//	checksum       BLOB / BYTEA
//	success        BOOLEAN
//	applied_at     TIMESTAMP
//	execution_ms   BIGINT
package backend
