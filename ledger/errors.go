package ledger

import (
	"errors"
)

// Input validation errors.
var (
	ErrInvalidToolKey = errors.New("tool category and name must not be empty")
	ErrInvalidHolder  = errors.New("holder id must not be empty")
	ErrNoTargets      = errors.New("at least one tool must be requested")
	ErrTooManyTargets = errors.New("too many tools requested in one call")
)

// Store construction errors.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("empty table name supplied")
	ErrUnsupportedDialect    = errors.New("unsupported sql dialect")
	ErrOpeningDatabaseFailed = errors.New("opening database failed")
)

// Store operation errors. These are the only fatal errors of the ledger core;
// they are wrapped together with the driver error using errors.Join.
var (
	ErrBuildingQueryFailed = errors.New("building query failed")
	ErrQueryFailed         = errors.New("querying tools failed")
	ErrScanFailed          = errors.New("scanning db row failed")
	ErrExecFailed          = errors.New("writing tools failed")
	ErrRowsAffectedFailed  = errors.New("getting rows affected failed")
	ErrSchemaFailed        = errors.New("ensuring schema failed")
	ErrConcurrencyConflict = errors.New("concurrency error, the row kept changing")
)
