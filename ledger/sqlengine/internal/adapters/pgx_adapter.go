package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildworks/toolledger/ledger"
)

// PGXAdapter implements DBAdapter for pgxpool.Pool.
// Writes always go to the primary; reads go to the replica only when one is set
// and the context carries ledger.EventualConsistency.
type PGXAdapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

// NewPGXAdapter creates an adapter without a replica.
func NewPGXAdapter(primary *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: primary}
}

// NewPGXAdapterWithReplica creates an adapter that may read from replica.
func NewPGXAdapterWithReplica(primary, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: primary, replica: replica}
}

// Query runs a read statement on the pool chosen by readPool.
func (p *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := p.readPool(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxRows{Rows: rows}, nil
}

// Exec runs a write statement on the primary.
func (p *PGXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := p.primary.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return commandTag(tag), nil
}

func (p *PGXAdapter) readPool(ctx context.Context) *pgxpool.Pool {
	if p.replica != nil && ledger.GetConsistencyLevel(ctx) == ledger.EventualConsistency {
		return p.replica
	}

	return p.primary
}

// pgxRows adapts pgx.Rows, whose Close returns nothing.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}

type commandTag pgconn.CommandTag

func (t commandTag) RowsAffected() (int64, error) {
	return pgconn.CommandTag(t).RowsAffected(), nil
}
