package helper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/toolledger/ledger"
)

// ToolWriter is the part of the store the Given helpers need.
type ToolWriter interface {
	AddTool(ctx context.Context, key ledger.ToolKey) (bool, error)
	AcquireLoan(ctx context.Context, key ledger.ToolKey, loan ledger.Loan, maxLoans int) (bool, error)
}

func GivenUniqueID(t testing.TB) string {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id.String()
}

func FixtureKey(t testing.TB, category, name string) ledger.ToolKey {
	key, err := ledger.BuildToolKey(category, name)
	require.NoError(t, err, "error in arranging test data")

	return key
}

func FixtureHolder(id, displayName string) ledger.Holder {
	return ledger.Holder{ID: id, DisplayName: displayName}
}

func FixtureLoan(holder ledger.Holder, borrowedAt time.Time) ledger.Loan {
	return ledger.BuildLoan(holder, borrowedAt)
}

func GivenToolsWereAdded(t testing.TB, ctx context.Context, store ToolWriter, keys ...ledger.ToolKey) {
	for _, key := range keys {
		added, err := store.AddTool(ctx, key)
		require.NoError(t, err, "error in arranging test data")
		require.True(t, added, "error in arranging test data: tool %s already existed", key)
	}
}

func GivenToolWasLoaned(t testing.TB, ctx context.Context, store ToolWriter, key ledger.ToolKey, holder ledger.Holder, borrowedAt time.Time) ledger.Loan {
	loan := FixtureLoan(holder, borrowedAt)

	acquired, err := store.AcquireLoan(ctx, key, loan, ledger.DefaultMaxLoans)
	require.NoError(t, err, "error in arranging test data")
	require.True(t, acquired, "error in arranging test data: tool %s was not available", key)

	return loan
}
