package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guildworks/toolledger/ledger"
)

const (
	operationDropSchema = "drop_schema"
	logMsgSchemaEnsured = "schema ensured"
	logMsgSchemaDropped = "schema dropped"
	logAttrTable        = "table"
)

const createTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	%s,
	category       TEXT NOT NULL,
	name           TEXT NOT NULL,
	borrower_id    TEXT NULL,
	borrower_name  TEXT NULL,
	borrower_label TEXT NULL,
	borrowed_at    TEXT NULL,
	UNIQUE (category, name)
)`

const createHolderIndexTemplate = `CREATE INDEX IF NOT EXISTS %s ON %s (borrower_id)`

const dropTableTemplate = `DROP TABLE IF EXISTS %s`

// EnsureSchema creates the tools table and its holder index if they do not exist yet.
// Categories have no table of their own; they are derived from the tools.
func (s Store) EnsureSchema(ctx context.Context) error {
	observer, ctx := s.observe(ctx, operationSchema, nil)

	for _, statement := range s.schemaStatements() {
		if _, err := s.executeStatement(ctx, statement, operationSchema); err != nil {
			s.logError(ctx, logMsgSchemaFailed, err, logAttrTable, s.tableName)
			observer.finishError(errorTypeSchema)
			return errors.Join(ledger.ErrSchemaFailed, err)
		}
	}

	s.logOperation(ctx, logMsgSchemaEnsured, logAttrTable, s.tableName)
	observer.finishSuccess(0)

	return nil
}

// DropSchema drops the tools table together with its index.
// It exists for tests and for tearing down a ledger; all loan state is lost.
func (s Store) DropSchema(ctx context.Context) error {
	observer, ctx := s.observe(ctx, operationDropSchema, nil)

	statement := fmt.Sprintf(dropTableTemplate, quoteIdentifier(s.tableName))

	if _, err := s.executeStatement(ctx, statement, operationDropSchema); err != nil {
		s.logError(ctx, logMsgSchemaFailed, err, logAttrTable, s.tableName)
		observer.finishError(errorTypeSchema)
		return errors.Join(ledger.ErrSchemaFailed, err)
	}

	s.logOperation(ctx, logMsgSchemaDropped, logAttrTable, s.tableName)
	observer.finishSuccess(0)

	return nil
}

func (s Store) schemaStatements() []string {
	idColumn := colID + " BIGSERIAL PRIMARY KEY"
	if s.dialect == DialectSQLite {
		idColumn = colID + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	table := quoteIdentifier(s.tableName)
	index := quoteIdentifier(s.tableName + "_" + colBorrowerID + "_idx")

	return []string{
		fmt.Sprintf(createTableTemplate, table, idColumn),
		fmt.Sprintf(createHolderIndexTemplate, index, table),
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
