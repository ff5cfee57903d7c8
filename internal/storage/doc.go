// Package storage keeps the optional broadcast journal: one record per
// publish attempt (trigger, author, outcome). Payloads are not stored.
//
// Drivers:
//   - "file": JSON Lines, append-only
//   - "sqlite": SQLite database (modernc.org/sqlite, WAL)
package storage
