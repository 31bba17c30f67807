// Package store provides SQLite-backed history of suite runs.
//
// Each run is one row in runs plus one row per fixture in results:
//   - runs: run ID (UUIDv7), program, start and finish time, pass/fail counts
//   - results: expected and actual output, exit code, duration, error text
//
// Results are keyed by (run_id, seq), where seq is the completion order of
// the run. Reads order by seq, never by timestamps.
//
// Fixture names are stored NFC-normalized so the same fixture created on
// filesystems with different Unicode normalization shares one history.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
