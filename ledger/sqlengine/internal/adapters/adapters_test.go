package adapters_test

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/guildworks/toolledger/ledger/sqlengine/internal/adapters"
)

func givenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "error in arranging test data")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func exerciseAdapter(t *testing.T, adapter adapters.DBAdapter) {
	t.Helper()

	ctx := t.Context()

	_, err := adapter.Exec(ctx, `CREATE TABLE tools (category TEXT, name TEXT)`)
	require.NoError(t, err)

	result, err := adapter.Exec(ctx, `INSERT INTO tools VALUES ('pick', 'Alpha'), ('pick', 'Beta')`)
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err := adapter.Query(ctx, `SELECT name FROM tools ORDER BY name`)
	require.NoError(t, err)

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}

	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"Alpha", "Beta"}, names)

	_, err = adapter.Query(ctx, `SELECT * FROM missing`)
	assert.Error(t, err)
}

func Test_SQLAdapter_Runs_Statements(t *testing.T) {
	exerciseAdapter(t, adapters.NewSQLAdapter(givenDB(t)))
}

func Test_SQLXAdapter_Runs_Statements(t *testing.T) {
	exerciseAdapter(t, adapters.NewSQLXAdapter(sqlx.NewDb(givenDB(t), "sqlite")))
}
