package loans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/toolledger/ledger"
)

func Test_DecideBorrow(t *testing.T) {
	testCases := []struct {
		name        string
		activeLoans int
		requested   int
		wantAttempt bool
	}{
		{name: "room for all", activeLoans: 0, requested: 3, wantAttempt: true},
		{name: "exactly at the cap", activeLoans: 2, requested: 1, wantAttempt: true},
		{name: "one over the cap", activeLoans: 2, requested: 2, wantAttempt: false},
		{name: "already full", activeLoans: 3, requested: 1, wantAttempt: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decision := decideBorrow(tc.activeLoans, tc.requested, ledger.DefaultMaxLoans)

			assert.Equal(t, tc.wantAttempt, decision.attempt)
			if !tc.wantAttempt {
				assert.Equal(t, ledger.ReasonQuotaExceeded, decision.failureReason)
			}
		})
	}
}

func Test_ClassifyAcquireMiss(t *testing.T) {
	key := ledger.ToolKey{Category: "A", Name: "1"}

	assert.Equal(t, ledger.ReasonNotFound, classifyAcquireMiss(ledger.Tool{}, false))
	assert.Equal(t, ledger.ReasonAlreadyLoaned, classifyAcquireMiss(ledger.Tool{Key: key, HolderID: "u2"}, true))
	assert.Equal(t, ledger.ReasonQuotaExceeded, classifyAcquireMiss(ledger.Tool{Key: key}, true))
}

func Test_ClassifyReleaseMiss(t *testing.T) {
	key := ledger.ToolKey{Category: "A", Name: "1"}

	testCases := []struct {
		name       string
		tool       ledger.Tool
		found      bool
		wantReason ledger.Reason
		wantFinal  bool
	}{
		{name: "missing", found: false, wantReason: ledger.ReasonNotFound, wantFinal: true},
		{name: "available", tool: ledger.Tool{Key: key}, found: true, wantReason: ledger.ReasonNoActiveLoan, wantFinal: true},
		{name: "held by someone else", tool: ledger.Tool{Key: key, HolderID: "u2"}, found: true, wantReason: ledger.ReasonNotOwner, wantFinal: true},
		{name: "held by the caller", tool: ledger.Tool{Key: key, HolderID: "u1"}, found: true, wantFinal: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reason, final := classifyReleaseMiss(tc.tool, tc.found, "u1")

			assert.Equal(t, tc.wantFinal, final)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}

func Test_DistinctKeys_Trims_Deduplicates_And_Keeps_Order(t *testing.T) {
	keys, err := distinctKeys([]ledger.ToolKey{
		{Category: "B", Name: "2"},
		{Category: " A", Name: "1 "},
		{Category: "B", Name: "2"},
		{Category: "A", Name: "1"},
	})

	require.NoError(t, err)
	assert.Equal(t, []ledger.ToolKey{{Category: "B", Name: "2"}, {Category: "A", Name: "1"}}, keys)
}

func Test_DistinctKeys_When_A_Key_Is_Invalid_It_Fails(t *testing.T) {
	_, err := distinctKeys([]ledger.ToolKey{{Category: "A", Name: "1"}, {Name: "2"}})

	assert.ErrorIs(t, err, ledger.ErrInvalidToolKey)
}
