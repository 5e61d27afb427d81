package loans

import (
	"time"

	"github.com/guildworks/toolledger/ledger"
)

// MaxTargetsPerCall is the maximum number of tools or return slots in one borrow or return request.
const MaxTargetsPerCall = 3

// Failure is the outcome of one target that could not be processed.
type Failure struct {
	Key    ledger.ToolKey
	Reason ledger.Reason
}

// Warning is reported for a return slot that did not resolve to a target.
type Warning struct {
	Category string
	Reason   ledger.Reason
}

// BorrowRequest asks for up to MaxTargetsPerCall tools on behalf of one holder.
type BorrowRequest struct {
	Holder  ledger.Holder
	Targets []ledger.ToolKey
}

// BorrowResult lists per target whether the loan was granted.
type BorrowResult struct {
	Holder     ledger.Holder
	BorrowedAt time.Time
	Succeeded  []ledger.ToolKey
	Failed     []Failure
}

// ReturnSlot is one return input. An empty Name returns the caller's single tool in Category.
// A Category equal to the all-token returns every tool of the caller.
type ReturnSlot struct {
	Category string
	Name     string
}

// IsEmpty reports whether the slot carries no category.
func (s ReturnSlot) IsEmpty() bool {
	return s.Category == ""
}

// ReturnRequest asks to return tools held by HolderID.
type ReturnRequest struct {
	HolderID ledger.HolderID
	Slots    []ReturnSlot
}

// ReturnResult lists per target whether the return applied, plus resolver warnings.
type ReturnResult struct {
	Succeeded []ledger.ToolKey
	Failed    []Failure
	Warnings  []Warning
}

// RevokeResult is the outcome of an administrative return.
// NotifyErr is set when the previous holder could not be notified; the return stands regardless.
type RevokeResult struct {
	Key          ledger.ToolKey
	Revoked      bool
	Reason       ledger.Reason
	PreviousLoan ledger.Loan
	Notified     bool
	NotifyErr    error
}

// SnapshotRow is one line of a category status view.
// HolderLabel is empty and BorrowedAt zero when the tool is available.
type SnapshotRow struct {
	Name        string
	HolderLabel string
	BorrowedAt  time.Time
}

// LoanReport is one line of the active loans report.
type LoanReport struct {
	Key         ledger.ToolKey
	HolderID    ledger.HolderID
	HolderLabel string
	BorrowedAt  time.Time
}
