// Package storage persists frame statistics samples.
//
// Drivers:
//   - "file": dependency-free JSON Lines file, compacted to the newest Keep samples
//   - "sqlite": SQLite database (build with -tags sqlite)
package storage
