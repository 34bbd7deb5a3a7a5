// Package database manages the four embedded SQLite stores that back the
// gallery: gallery.db (items, full-text index, album covers, thumbnail
// status), settings.db, history.db (per-user view times), and index.db
// (rebuild status and resume checkpoints).
//
// Every connection is opened in WAL mode with a numeric-aware
// case-insensitive collation (NATCASE) registered through the driver's
// connect hook, and mmap/page-cache sizes tuned to the host memory tier.
// All queries run under a runtime-adjustable timeout; writes go through
// BEGIN IMMEDIATE transactions and a short retry ladder when the database
// is busy.
package database
