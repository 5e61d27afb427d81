package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildworks/toolledger/ledger/sqlengine"
)

// OpenStore creates the sqlengine.Store selected by cfg.Engine and ensures its schema.
// The returned cleanup function releases the underlying connections and is never nil.
func OpenStore(ctx context.Context, cfg Config, options ...sqlengine.Option) (sqlengine.Store, func(), error) {
	noop := func() {}

	options = append([]sqlengine.Option{sqlengine.WithTableName(cfg.TableName)}, options...)

	var store sqlengine.Store
	var cleanup func()
	var err error

	switch cfg.Engine {
	case EngineSQLite:
		store, cleanup, err = openSQLiteStore(cfg, options)
	case EnginePGXPool:
		store, cleanup, err = openPGXPoolStore(ctx, cfg, options)
	case EngineSQLDB:
		store, cleanup, err = openSQLDBStore(ctx, cfg, options)
	case EngineSQLX:
		store, cleanup, err = openSQLXStore(ctx, cfg, options)
	default:
		return sqlengine.Store{}, noop, fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
	}

	if err != nil {
		return sqlengine.Store{}, noop, err
	}

	if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
		cleanup()
		return sqlengine.Store{}, noop, schemaErr
	}

	return store, cleanup, nil
}

func openSQLiteStore(cfg Config, options []sqlengine.Option) (sqlengine.Store, func(), error) {
	store, err := sqlengine.NewStoreFromSQLite(cfg.SQLitePath, options...)
	if err != nil {
		return sqlengine.Store{}, nil, err
	}

	return store, func() { _ = store.Close() }, nil
}

func openPGXPoolStore(ctx context.Context, cfg Config, options []sqlengine.Option) (sqlengine.Store, func(), error) {
	primary, err := newPGXPool(ctx, cfg.DSN)
	if err != nil {
		return sqlengine.Store{}, nil, err
	}

	if cfg.ReplicaDSN == "" {
		store, storeErr := sqlengine.NewStoreFromPGXPool(primary, options...)
		if storeErr != nil {
			primary.Close()
			return sqlengine.Store{}, nil, storeErr
		}

		return store, primary.Close, nil
	}

	replica, err := newPGXPool(ctx, cfg.ReplicaDSN)
	if err != nil {
		primary.Close()
		return sqlengine.Store{}, nil, err
	}

	cleanup := func() {
		replica.Close()
		primary.Close()
	}

	store, err := sqlengine.NewStoreFromPGXPoolWithReplica(primary, replica, options...)
	if err != nil {
		cleanup()
		return sqlengine.Store{}, nil, err
	}

	return store, cleanup, nil
}

func openSQLDBStore(ctx context.Context, cfg Config, options []sqlengine.Option) (sqlengine.Store, func(), error) {
	db, err := PostgresSQLDB(ctx, cfg.DSN)
	if err != nil {
		return sqlengine.Store{}, nil, err
	}

	store, err := sqlengine.NewStoreFromSQLDB(db, options...)
	if err != nil {
		_ = db.Close()
		return sqlengine.Store{}, nil, err
	}

	return store, func() { _ = db.Close() }, nil
}

func openSQLXStore(ctx context.Context, cfg Config, options []sqlengine.Option) (sqlengine.Store, func(), error) {
	db, err := PostgresSQLX(ctx, cfg.DSN)
	if err != nil {
		return sqlengine.Store{}, nil, err
	}

	store, err := sqlengine.NewStoreFromSQLX(db, options...)
	if err != nil {
		_ = db.Close()
		return sqlengine.Store{}, nil, err
	}

	return store, func() { _ = db.Close() }, nil
}

func newPGXPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := PostgresPGXPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, errors.Join(errors.New("connecting to postgres failed"), pingErr)
	}

	return pool, nil
}
