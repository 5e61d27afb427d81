package lookupcache

import (
	"time"

	"github.com/guildworks/toolledger/ledger"
)

// MaxSuggestions is the maximum number of results any completion query returns.
const MaxSuggestions = 25

// Entry is the immutable cached state of one tool. A zero Entry means the tool is available.
type Entry struct {
	HolderID    ledger.HolderID
	HolderName  string
	HolderLabel string
	BorrowedAt  time.Time
}

// OnLoan reports whether the entry has a holder.
func (e Entry) OnLoan() bool {
	return e.HolderID != ""
}

// Label returns the label snapshot, falling back to the display name snapshot.
func (e Entry) Label() string {
	if e.HolderLabel != "" {
		return e.HolderLabel
	}

	return e.HolderName
}

// Item is one tool as seen through the cache.
type Item struct {
	Key   ledger.ToolKey
	Entry Entry
}

// EntryFromTool builds the cache entry of a tool read from the store.
func EntryFromTool(tool ledger.Tool) Entry {
	loan, ok := tool.Loan()
	if !ok {
		return Entry{}
	}

	return EntryFromLoan(&loan)
}

// EntryFromLoan builds the cache entry for a loan; nil means the tool is available.
func EntryFromLoan(loan *ledger.Loan) Entry {
	if loan == nil || loan.HolderID == "" {
		return Entry{}
	}

	return Entry{
		HolderID:    loan.HolderID,
		HolderName:  loan.HolderName,
		HolderLabel: loan.HolderLabel,
		BorrowedAt:  loan.BorrowedAt,
	}
}
