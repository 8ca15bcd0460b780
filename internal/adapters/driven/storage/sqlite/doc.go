// Package sqlite provides a SQLite-backed implementation of driven.VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each chunk row carries its text,
// its full page-level provenance and its embedding as a little-endian float32
// blob. Similarity search is an exact cosine scan, which is fast enough for a
// personal library of a few hundred thousand chunks.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <paths.vector_db>/chunks.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
