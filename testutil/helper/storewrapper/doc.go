// Package storewrapper selects the sqlengine.Store backend for tests.
//
// The ADAPTER_TYPE environment variable chooses the backend:
// "sqlite" (default, embedded and needs no service), "pgxpool", "sqldb" or "sqlx".
// The Postgres backends connect to TOOLLEDGER_TEST_DSN and use a table that is unique per test.
package storewrapper
