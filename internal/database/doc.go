// Package database is the SQLite-backed media library the converter works
// against.
//
// It stores:
//   - attachments: one row per stored media file (path, MIME type, title)
//   - metadata: key/value settings, including the shared file name counter
//
// Database implements naming.CounterStore; Advance reads and advances the
// counter inside a single transaction under the write lock.
//
// The database uses WAL mode for concurrent readers.
package database
