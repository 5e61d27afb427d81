package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver registration

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/ledger/sqlengine/internal/adapters"
)

const (
	// DialectPostgres builds statements for PostgreSQL.
	DialectPostgres = "postgres"
	// DialectSQLite builds statements for SQLite.
	DialectSQLite = "sqlite3"

	defaultTableName    = "tools"
	maxRemoveAttempts   = 3
	borrowedAtLayout    = "2006-01-02 15:04:05.000000"
	sqliteDriverName    = "sqlite"
	sqliteDSNPragmas    = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	colID               = "id"
	colCategory         = "category"
	colName             = "name"
	colBorrowerID       = "borrower_id"
	colBorrowerName     = "borrower_name"
	colBorrowerLabel    = "borrower_label"
	colBorrowedAt       = "borrowed_at"
	operationAddTool    = "add_tool"
	operationRemoveTool = "remove_tool"
	operationStatus     = "status"
	operationAcquire    = "acquire_loan"
	operationRelease    = "release_loan"
	operationCount      = "count_active_loans"
	operationListHolder = "list_active_loans"
	operationListAll    = "list_all"
	operationListActive = "list_active"
	operationSchema     = "ensure_schema"

	logMsgBuildQueryFailed    = "failed to build sql statement"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database statement execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgSchemaFailed        = "failed to ensure schema"
	logMsgToolAdded           = "tool added"
	logMsgToolRemoved         = "tool removed"
	logMsgLoanAcquired        = "loan acquired"
	logMsgLoanReleased        = "loan released"
	logMsgWriteNotApplied     = "conditional write did not apply"
	logMsgRemoveRetried       = "tool changed between read and delete, retrying"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "ledger store operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrCategory           = "category"
	logAttrName               = "name"
	logAttrHolderID           = "holder_id"
	logAttrRowCount           = "row_count"
	logAttrRowsAffected       = "rows_affected"
	logAttrAttempt            = "attempt"
	logAttrDurationMS         = "duration_ms"
)

// Store is the authoritative persistent record of all tools and their loan state.
// Every conditional write is a single SQL statement, so the store never holds a lock
// across a read and a write.
type Store struct {
	db               adapters.DBAdapter
	closer           io.Closer
	dialect          string
	tableName        string
	logger           ledger.Logger
	contextualLogger ledger.ContextualLogger
	metricsCollector ledger.MetricsCollector
	tracingCollector ledger.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), nil, DialectPostgres, options)
}

// NewStoreFromPGXPoolWithReplica creates a new Store using a primary pgx Pool and a replica Pool.
// Reads go to the replica only when the context carries ledger.EventualConsistency.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), nil, DialectPostgres, options)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
// The dialect defaults to DialectPostgres; use WithDialect for other databases.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), nil, DialectPostgres, options)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
// The dialect defaults to DialectPostgres; use WithDialect for other databases.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), nil, DialectPostgres, options)
}

// NewStoreFromSQLite opens (or creates) an embedded SQLite database file and returns a Store
// that owns the connection. Call Close when done.
func NewStoreFromSQLite(path string, options ...Option) (Store, error) {
	db, err := sql.Open(sqliteDriverName, path+sqliteDSNPragmas)
	if err != nil {
		return Store{}, errors.Join(ledger.ErrOpeningDatabaseFailed, err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	options = append([]Option{WithDialect(DialectSQLite)}, options...)

	store, err := newStore(adapters.NewSQLAdapter(db), db, DialectSQLite, options)
	if err != nil {
		_ = db.Close()
		return Store{}, err
	}

	return store, nil
}

func newStore(db adapters.DBAdapter, closer io.Closer, dialect string, options []Option) (Store, error) {
	s := Store{
		db:        db,
		closer:    closer,
		dialect:   dialect,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// Close releases the database connection if the Store owns it (see NewStoreFromSQLite).
// Stores built on a caller-provided connection leave it open.
func (s Store) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

// Dialect returns the SQL dialect the Store builds statements for.
func (s Store) Dialect() string {
	return s.dialect
}

// AddTool registers a new, available tool.
// It returns false without error if a tool with the same key already exists.
func (s Store) AddTool(ctx context.Context, key ledger.ToolKey) (bool, error) {
	if !key.Valid() {
		return false, ledger.ErrInvalidToolKey
	}

	observer, ctx := s.observe(ctx, operationAddTool, &key)

	sqlQuery, err := s.buildInsertToolQuery(key)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrCategory, key.Category, logAttrName, key.Name)
		observer.finishError(errorTypeBuildQuery)
		return false, err
	}

	rowsAffected, err := s.executeStatement(ctx, sqlQuery, operationAddTool)
	if err != nil {
		observer.finishError(errorTypeExec)
		return false, err
	}

	added := rowsAffected == 1
	if added {
		s.logOperation(ctx, logMsgToolAdded, logAttrCategory, key.Category, logAttrName, key.Name)
	}

	observer.finishWrite(added)

	return added, nil
}

// RemoveTool deletes a tool and returns it as it was when removed, so that callers can act on
// a loan that was removed together with the tool. It returns false if no such tool exists.
//
// The delete is conditioned on the holder observed by a preceding point read. If the tool changed
// in between, the read is repeated a bounded number of times before ledger.ErrConcurrencyConflict is returned.
func (s Store) RemoveTool(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error) {
	if !key.Valid() {
		return ledger.Tool{}, false, ledger.ErrInvalidToolKey
	}

	observer, ctx := s.observe(ctx, operationRemoveTool, &key)
	ctx = ledger.WithStrongConsistency(ctx)

	for attempt := 1; attempt <= maxRemoveAttempts; attempt++ {
		tool, found, err := s.readTool(ctx, key)
		if err != nil {
			observer.finishError(errorTypeForErr(err))
			return ledger.Tool{}, false, err
		}

		if !found {
			observer.finishWrite(false)
			return ledger.Tool{}, false, nil
		}

		sqlQuery, err := s.buildDeleteToolQuery(tool)
		if err != nil {
			s.logError(ctx, logMsgBuildQueryFailed, err, logAttrCategory, key.Category, logAttrName, key.Name)
			observer.finishError(errorTypeBuildQuery)
			return ledger.Tool{}, false, err
		}

		rowsAffected, err := s.executeStatement(ctx, sqlQuery, operationRemoveTool)
		if err != nil {
			observer.finishError(errorTypeExec)
			return ledger.Tool{}, false, err
		}

		if rowsAffected == 1 {
			s.logOperation(ctx, logMsgToolRemoved,
				logAttrCategory, key.Category,
				logAttrName, key.Name,
				logAttrHolderID, tool.HolderID,
			)
			observer.finishWrite(true)

			return tool, true, nil
		}

		s.logOperation(ctx, logMsgRemoveRetried, logAttrCategory, key.Category, logAttrName, key.Name, logAttrAttempt, attempt)
	}

	s.logOperation(ctx, logMsgConcurrencyConflict, logAttrCategory, key.Category, logAttrName, key.Name)
	observer.finishError(errorTypeConcurrency)

	return ledger.Tool{}, false, ledger.ErrConcurrencyConflict
}

// Status returns the current state of one tool and whether it exists.
func (s Store) Status(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error) {
	if !key.Valid() {
		return ledger.Tool{}, false, ledger.ErrInvalidToolKey
	}

	observer, ctx := s.observe(ctx, operationStatus, &key)

	tool, found, err := s.readTool(ctx, key)
	if err != nil {
		observer.finishError(errorTypeForErr(err))
		return ledger.Tool{}, false, err
	}

	rows := 0
	if found {
		rows = 1
	}

	observer.finishSuccess(rows)

	return tool, found, nil
}

// AcquireLoan attaches the loan to the tool in one conditional write.
// The write applies only if the tool exists, has no holder, and the holder currently has
// fewer than maxLoans active loans. It reports whether the write applied.
// A maxLoans value below 1 means ledger.DefaultMaxLoans.
func (s Store) AcquireLoan(ctx context.Context, key ledger.ToolKey, loan ledger.Loan, maxLoans int) (bool, error) {
	if !key.Valid() {
		return false, ledger.ErrInvalidToolKey
	}

	if loan.HolderID == "" {
		return false, ledger.ErrInvalidHolder
	}

	if maxLoans < 1 {
		maxLoans = ledger.DefaultMaxLoans
	}

	observer, ctx := s.observe(ctx, operationAcquire, &key)

	sqlQuery, err := s.buildAcquireLoanQuery(key, loan, maxLoans)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrCategory, key.Category, logAttrName, key.Name)
		observer.finishError(errorTypeBuildQuery)
		return false, err
	}

	rowsAffected, err := s.executeStatement(ctx, sqlQuery, operationAcquire)
	if err != nil {
		observer.finishError(errorTypeExec)
		return false, err
	}

	acquired := rowsAffected == 1
	if acquired {
		s.logOperation(ctx, logMsgLoanAcquired, logAttrCategory, key.Category, logAttrName, key.Name, logAttrHolderID, loan.HolderID)
	} else {
		s.logOperation(ctx, logMsgWriteNotApplied+": "+operationAcquire,
			logAttrCategory, key.Category,
			logAttrName, key.Name,
			logAttrHolderID, loan.HolderID,
			logAttrRowsAffected, rowsAffected,
		)
	}

	observer.finishWrite(acquired)

	return acquired, nil
}

// ReleaseLoan clears the loan of a tool in one conditional write.
// The write applies only if the tool is currently held by holderID. It reports whether the write applied.
func (s Store) ReleaseLoan(ctx context.Context, key ledger.ToolKey, holderID ledger.HolderID) (bool, error) {
	if !key.Valid() {
		return false, ledger.ErrInvalidToolKey
	}

	if holderID == "" {
		return false, ledger.ErrInvalidHolder
	}

	observer, ctx := s.observe(ctx, operationRelease, &key)

	sqlQuery, err := s.buildReleaseLoanQuery(key, holderID)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrCategory, key.Category, logAttrName, key.Name)
		observer.finishError(errorTypeBuildQuery)
		return false, err
	}

	rowsAffected, err := s.executeStatement(ctx, sqlQuery, operationRelease)
	if err != nil {
		observer.finishError(errorTypeExec)
		return false, err
	}

	released := rowsAffected == 1
	if released {
		s.logOperation(ctx, logMsgLoanReleased, logAttrCategory, key.Category, logAttrName, key.Name, logAttrHolderID, holderID)
	} else {
		s.logOperation(ctx, logMsgWriteNotApplied+": "+operationRelease,
			logAttrCategory, key.Category,
			logAttrName, key.Name,
			logAttrHolderID, holderID,
		)
	}

	observer.finishWrite(released)

	return released, nil
}

// CountActiveLoans returns the number of tools currently held by holderID.
func (s Store) CountActiveLoans(ctx context.Context, holderID ledger.HolderID) (int, error) {
	observer, ctx := s.observe(ctx, operationCount, nil)

	sqlQuery, err := s.buildCountQuery(holderID)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrHolderID, holderID)
		observer.finishError(errorTypeBuildQuery)
		return 0, err
	}

	rows, err := s.executeQuery(ctx, sqlQuery, operationCount)
	if err != nil {
		observer.finishError(errorTypeQuery)
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	var count int64
	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			observer.finishError(errorTypeScan)
			return 0, errors.Join(ledger.ErrScanFailed, scanErr)
		}
	}

	if iterErr := rows.Err(); iterErr != nil {
		observer.finishError(errorTypeQuery)
		return 0, errors.Join(ledger.ErrQueryFailed, iterErr)
	}

	observer.finishSuccess(1)

	return int(count), nil
}

// ListActiveLoans returns the tools held by holderID, oldest loan first.
func (s Store) ListActiveLoans(ctx context.Context, holderID ledger.HolderID) ([]ledger.Tool, error) {
	return s.listTools(ctx, operationListHolder, func() (string, error) {
		return s.buildListHeldQuery(holderID)
	})
}

// ListAll returns every tool ordered by category, then name.
func (s Store) ListAll(ctx context.Context) ([]ledger.Tool, error) {
	return s.listTools(ctx, operationListAll, s.buildListAllQuery)
}

// ListActive returns every tool currently on loan, oldest loan first.
func (s Store) ListActive(ctx context.Context) ([]ledger.Tool, error) {
	return s.listTools(ctx, operationListActive, s.buildListActiveQuery)
}

func (s Store) listTools(ctx context.Context, operation string, build func() (string, error)) ([]ledger.Tool, error) {
	observer, ctx := s.observe(ctx, operation, nil)

	sqlQuery, err := build()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		observer.finishError(errorTypeBuildQuery)
		return nil, err
	}

	tools, err := s.queryTools(ctx, sqlQuery, operation)
	if err != nil {
		observer.finishError(errorTypeForErr(err))
		return nil, err
	}

	observer.recordRowsRead(len(tools))
	observer.finishSuccess(len(tools))

	return tools, nil
}

// readTool performs the point read shared by Status and RemoveTool.
func (s Store) readTool(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error) {
	sqlQuery, err := s.buildStatusQuery(key)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrCategory, key.Category, logAttrName, key.Name)
		return ledger.Tool{}, false, err
	}

	tools, err := s.queryTools(ctx, sqlQuery, operationStatus)
	if err != nil {
		return ledger.Tool{}, false, err
	}

	if len(tools) == 0 {
		return ledger.Tool{}, false, nil
	}

	return tools[0], true, nil
}

// queryTools executes a query selecting toolColumns and scans every row.
func (s Store) queryTools(ctx context.Context, sqlQuery, action string) ([]ledger.Tool, error) {
	rows, err := s.executeQuery(ctx, sqlQuery, action)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	tools := make([]ledger.Tool, 0)

	for rows.Next() {
		tool, scanErr := scanTool(rows)
		if scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, scanErr
		}

		tools = append(tools, tool)
	}

	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, iterErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ledger.ErrQueryFailed, iterErr)
	}

	return tools, nil
}

// executeQuery executes the SQL query and logs it with timing information.
func (s Store) executeQuery(ctx context.Context, sqlQuery, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ledger.ErrQueryFailed, queryErr)
	}

	return rows, nil
}

// executeStatement executes a write statement and returns the number of affected rows.
func (s Store) executeStatement(ctx context.Context, sqlQuery, action string) (int64, error) {
	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, errors.Join(ledger.ErrExecFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, errors.Join(ledger.ErrRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, closeErr)
	}
}

func scanTool(rows adapters.DBRows) (ledger.Tool, error) {
	var category, name string
	var borrowerID, borrowerName, borrowerLabel, borrowedAt sql.NullString

	if err := rows.Scan(&category, &name, &borrowerID, &borrowerName, &borrowerLabel, &borrowedAt); err != nil {
		return ledger.Tool{}, errors.Join(ledger.ErrScanFailed, err)
	}

	tool := ledger.Tool{
		Key: ledger.ToolKey{Category: category, Name: name},
	}

	if !borrowerID.Valid || borrowerID.String == "" {
		return tool, nil
	}

	tool.HolderID = borrowerID.String
	tool.HolderName = borrowerName.String
	tool.HolderLabel = borrowerLabel.String

	if borrowedAt.Valid && borrowedAt.String != "" {
		t, err := time.ParseInLocation(borrowedAtLayout, borrowedAt.String, time.UTC)
		if err != nil {
			return ledger.Tool{}, errors.Join(ledger.ErrScanFailed, err)
		}

		tool.BorrowedAt = t
	}

	return tool, nil
}

func formatBorrowedAt(t time.Time) string {
	return ledger.ToBorrowedAt(t).Format(borrowedAtLayout)
}

func errorTypeForErr(err error) string {
	switch {
	case errors.Is(err, ledger.ErrBuildingQueryFailed):
		return errorTypeBuildQuery
	case errors.Is(err, ledger.ErrScanFailed):
		return errorTypeScan
	case errors.Is(err, ledger.ErrExecFailed), errors.Is(err, ledger.ErrRowsAffectedFailed):
		return errorTypeExec
	default:
		return errorTypeQuery
	}
}
