package loans_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/loans"
	"github.com/guildworks/toolledger/lookupcache"
)

func givenResolverView() *lookupcache.Cache {
	held := func(category, name, holderID string) ledger.Tool {
		return ledger.Tool{Key: ledger.ToolKey{Category: category, Name: name}, HolderID: holderID, HolderName: holderID}
	}

	cache := lookupcache.New()
	cache.Reload([]ledger.Tool{
		held("A", "1", "u1"),
		held("A", "2", "u1"),
		held("B", "1", "u1"),
		held("C", "1", "u2"),
		{Key: ledger.ToolKey{Category: "C", Name: "2"}},
	})

	return cache
}

func Test_Resolve(t *testing.T) {
	view := givenResolverView()
	a1 := ledger.ToolKey{Category: "A", Name: "1"}
	a2 := ledger.ToolKey{Category: "A", Name: "2"}
	b1 := ledger.ToolKey{Category: "B", Name: "1"}

	testCases := []struct {
		name         string
		holderID     string
		slots        []loans.ReturnSlot
		wantKeys     []ledger.ToolKey
		wantWarnings []loans.Warning
	}{
		{
			name:         "category with several loans is ambiguous",
			holderID:     "u1",
			slots:        []loans.ReturnSlot{{Category: "A"}},
			wantKeys:     []ledger.ToolKey{},
			wantWarnings: []loans.Warning{{Category: "A", Reason: ledger.ReasonAmbiguousTarget}},
		},
		{
			name:         "category with one loan resolves to it",
			holderID:     "u1",
			slots:        []loans.ReturnSlot{{Category: "B"}},
			wantKeys:     []ledger.ToolKey{b1},
			wantWarnings: []loans.Warning{},
		},
		{
			name:         "category without loans of the holder",
			holderID:     "u1",
			slots:        []loans.ReturnSlot{{Category: "C"}},
			wantKeys:     []ledger.ToolKey{},
			wantWarnings: []loans.Warning{{Category: "C", Reason: ledger.ReasonNoActiveLoan}},
		},
		{
			name:         "all token returns every loan regardless of category",
			holderID:     "u1",
			slots:        []loans.ReturnSlot{{Category: "*"}},
			wantKeys:     []ledger.ToolKey{a1, a2, b1},
			wantWarnings: []loans.Warning{},
		},
		{
			name:         "all token without loans",
			holderID:     "u3",
			slots:        []loans.ReturnSlot{{Category: "*"}},
			wantKeys:     []ledger.ToolKey{},
			wantWarnings: []loans.Warning{{Category: "*", Reason: ledger.ReasonNoActiveLoan}},
		},
		{
			name:         "mixed slots are merged without duplicates",
			holderID:     "u1",
			slots:        []loans.ReturnSlot{{Category: "B"}, {Category: "*"}, {Category: "A", Name: "2"}},
			wantKeys:     []ledger.ToolKey{b1, a1, a2},
			wantWarnings: []loans.Warning{},
		},
		{
			name:         "literal slots are taken as given and empty slots skipped",
			holderID:     "u2",
			slots:        []loans.ReturnSlot{{}, {Category: " X ", Name: " Ghost "}, {Category: "A", Name: "1"}},
			wantKeys:     []ledger.ToolKey{{Category: "X", Name: "Ghost"}, a1},
			wantWarnings: []loans.Warning{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			keys, warnings := loans.Resolve(view, tc.holderID, tc.slots, loans.DefaultReturnAllToken)

			assert.Equal(t, tc.wantKeys, keys)
			assert.Equal(t, tc.wantWarnings, warnings)
		})
	}
}
