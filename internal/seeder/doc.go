// Package seeder applies and reverts versioned scripts against a database.
//
// The Engine is a stateless orchestrator: every invocation receives a
// Registry and a backend.Adapter and sequences adapter calls in a fixed
// order.
//
// # Consistency protocol
//
// Run and Revert share the same preamble:
//
//  1. Lock the tracking table. The lock is released on every exit path.
//  2. Ensure the tracking table exists.
//  3. Fail with DirtyDatabaseError if any record has success=false.
//  4. List applied records.
//  5. Fail with MissingVersionError if an applied version has no script,
//     unless the registry ignores missing versions.
//
// Run then walks scripts in ascending order, skipping down scripts. An
// applied version whose checksum differs fails with ChecksumMismatchError;
// an unapplied version is applied. Revert walks down scripts in descending
// order and reverts the first applied one, at most one per invocation.
//
// The first fatal condition ends the invocation. Nothing is retried and the
// dirty marker written by a failed script is never cleared automatically.
package seeder
