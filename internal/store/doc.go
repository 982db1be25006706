// Package store provides SQLite-backed durable storage for formdeps
// evaluation logs.
//
// The store implements an append-only log with:
//   - Passes: one row per top-level evaluation pass
//   - Mutations, Events, Diagnostics: the pass output, in emission order
//   - Test runs: dependency test-mode reports
//
// # Ordering
//
// Passes are ordered by seq (the engine's logical clock), never by wall
// time, with id as the tie-breaker. Child rows are ordered by ordinal.
// Payload columns hold canonical JSON so identical passes store identical
// bytes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
