// Package adapters provide database adapter implementations for the SQL ledger store.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the ledger store to work with any supported
// connection type, including the embedded SQLite engine which is opened as a sql.DB.
//
// The pgx adapter optionally routes reads to a replica pool when the request context
// carries ledger.EventualConsistency.
package adapters
