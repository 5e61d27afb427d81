// Package ledger provides the core types and abstractions of the tool loan ledger.
//
// This package defines the fundamental types shared by every ledger store implementation
// and by the loan policy engine: tool keys, tools, loans, holders, per-item failure reasons,
// the common error definitions and the dependency-free observability interfaces.
//
// A Tool is identified by its ToolKey (category and name). A Tool is either available or
// on loan to exactly one holder. A loan is not a separate record; it is the holder snapshot
// and timestamp attached to the Tool.
//
// Key types:
//   - ToolKey: Identifies a tool by category and name
//   - Tool: The authoritative state of one tool as read from a store
//   - Loan: The holder snapshot written when a tool is borrowed
//   - Reason: Per-item failure code reported in batch results
//
// Common usage pattern:
//
//	key, err := ledger.BuildToolKey("pick", "Alpha")
//	if err != nil {
//		// handle invalid input
//	}
//
//	loan := ledger.BuildLoan(holder, time.Now())
//	acquired, err := store.AcquireLoan(ctx, key, loan, ledger.DefaultMaxLoans)
package ledger
