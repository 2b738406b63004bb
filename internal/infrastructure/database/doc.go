// Package database manages the SQLite connection for the profile store.
//
// It wraps database/sql with:
//   - Directory creation and restrictive file permissions on open
//   - WAL mode and busy-timeout pragmas from configuration
//   - Versioned, embedded SQL migrations (see the migrations package)
//   - Health checks for startup verification
//
// SQLite is opened with a single-connection pool: the profile store is
// low-traffic CRUD and SQLite allows only one writer at a time.
package database
