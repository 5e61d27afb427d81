// Package sqlengine provides the SQL implementation of the tool loan ledger store.
//
// The Store keeps one row per tool. A loan is not a row of its own; it is the holder snapshot
// (id, display name, preferred label) and the borrowed-at timestamp written onto the tool row.
// Categories are derived from the rows and have no table.
//
// Supported connections:
//   - pgx/v5 connection pools (NewStoreFromPGXPool), optionally with a read replica
//   - database/sql connections (NewStoreFromSQLDB), e.g. with lib/pq
//   - sqlx connections (NewStoreFromSQLX)
//   - an embedded SQLite file (NewStoreFromSQLite), backed by modernc.org/sqlite
//
// Statements are built with goqu for the postgres or sqlite3 dialect.
//
// Admission is enforced in the database. AcquireLoan is a single conditional UPDATE that only
// applies when the tool exists, has no holder and the holder is below the loan cap, so two
// concurrent borrows of the same tool can never both succeed. ReleaseLoan and RemoveTool are
// conditioned on the holder in the same way.
//
// Example:
//
//	store, err := sqlengine.NewStoreFromSQLite("ledger.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureSchema(ctx); err != nil {
//		return err
//	}
//
//	added, err := store.AddTool(ctx, ledger.ToolKey{Category: "pick", Name: "Alpha"})
package sqlengine
