package sqlengine

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/guildworks/toolledger/ledger"
)

type sqlQueryString = string

func (s Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(s.dialect)
}

func toolColumns() []any {
	return []any{colCategory, colName, colBorrowerID, colBorrowerName, colBorrowerLabel, colBorrowedAt}
}

func keyExpressions(key ledger.ToolKey) []exp.Expression {
	return []exp.Expression{
		goqu.C(colCategory).Eq(key.Category),
		goqu.C(colName).Eq(key.Name),
	}
}

func (s Store) buildInsertToolQuery(key ledger.ToolKey) (sqlQueryString, error) {
	insertStmt := s.builder().
		Insert(s.tableName).
		Rows(goqu.Record{colCategory: key.Category, colName: key.Name}).
		OnConflict(goqu.DoNothing())

	return toSQL(insertStmt)
}

func (s Store) buildDeleteToolQuery(observed ledger.Tool) (sqlQueryString, error) {
	where := keyExpressions(observed.Key)
	where = append(where, holderIs(observed.HolderID))

	deleteStmt := s.builder().
		Delete(s.tableName).
		Where(where...)

	return toSQL(deleteStmt)
}

func (s Store) buildStatusQuery(key ledger.ToolKey) (sqlQueryString, error) {
	selectStmt := s.builder().
		From(s.tableName).
		Select(toolColumns()...).
		Where(keyExpressions(key)...).
		Limit(1)

	return toSQL(selectStmt)
}

// buildAcquireLoanQuery builds the conditional write that closes the check-then-write race:
//
//	UPDATE tools SET borrower_* = ...
//	WHERE category = ? AND name = ? AND borrower_id IS NULL
//	  AND (SELECT COUNT(*) FROM tools WHERE borrower_id = ?) < ?
func (s Store) buildAcquireLoanQuery(key ledger.ToolKey, loan ledger.Loan, maxLoans int) (sqlQueryString, error) {
	builder := s.builder()

	activeLoans := builder.
		From(s.tableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colBorrowerID).Eq(loan.HolderID))

	where := keyExpressions(key)
	where = append(where,
		goqu.C(colBorrowerID).IsNull(),
		goqu.L("? < ?", activeLoans, maxLoans),
	)

	updateStmt := builder.
		Update(s.tableName).
		Set(goqu.Record{
			colBorrowerID:    loan.HolderID,
			colBorrowerName:  loan.HolderName,
			colBorrowerLabel: nullIfEmpty(loan.HolderLabel),
			colBorrowedAt:    formatBorrowedAt(loan.BorrowedAt),
		}).
		Where(where...)

	return toSQL(updateStmt)
}

func (s Store) buildReleaseLoanQuery(key ledger.ToolKey, holderID ledger.HolderID) (sqlQueryString, error) {
	where := keyExpressions(key)
	where = append(where, goqu.C(colBorrowerID).Eq(holderID))

	updateStmt := s.builder().
		Update(s.tableName).
		Set(goqu.Record{
			colBorrowerID:    nil,
			colBorrowerName:  nil,
			colBorrowerLabel: nil,
			colBorrowedAt:    nil,
		}).
		Where(where...)

	return toSQL(updateStmt)
}

func (s Store) buildCountQuery(holderID ledger.HolderID) (sqlQueryString, error) {
	selectStmt := s.builder().
		From(s.tableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colBorrowerID).Eq(holderID))

	return toSQL(selectStmt)
}

func (s Store) buildListHeldQuery(holderID ledger.HolderID) (sqlQueryString, error) {
	selectStmt := s.builder().
		From(s.tableName).
		Select(toolColumns()...).
		Where(goqu.C(colBorrowerID).Eq(holderID)).
		Order(oldestLoanFirst()...)

	return toSQL(selectStmt)
}

func (s Store) buildListAllQuery() (sqlQueryString, error) {
	selectStmt := s.builder().
		From(s.tableName).
		Select(toolColumns()...).
		Order(goqu.I(colCategory).Asc(), goqu.I(colName).Asc())

	return toSQL(selectStmt)
}

func (s Store) buildListActiveQuery() (sqlQueryString, error) {
	selectStmt := s.builder().
		From(s.tableName).
		Select(toolColumns()...).
		Where(goqu.C(colBorrowerID).IsNotNull()).
		Order(oldestLoanFirst()...)

	return toSQL(selectStmt)
}

func oldestLoanFirst() []exp.OrderedExpression {
	return []exp.OrderedExpression{
		goqu.I(colBorrowedAt).Asc(),
		goqu.I(colCategory).Asc(),
		goqu.I(colName).Asc(),
	}
}

func holderIs(holderID ledger.HolderID) exp.Expression {
	if holderID == "" {
		return goqu.C(colBorrowerID).IsNull()
	}

	return goqu.C(colBorrowerID).Eq(holderID)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}

	return value
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func toSQL(stmt sqlBuilder) (sqlQueryString, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
