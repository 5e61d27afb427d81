// Package loans implements the loan policy engine of the tool ledger.
//
// The Service decides borrow and return requests, performs administrative operations
// (adding, removing and revoking tools) and serves reports. It owns the lookup cache:
// every change that the store accepted is pushed into the cache, by patching the single
// tool that changed or by a full reload when more than one tool changed.
//
// Admission is never decided from the cache. The per-holder quota is checked once per call
// against the store, and each tool is then acquired with one conditional write, so that two
// concurrent requests for the same tool can never both succeed.
//
// Batch operations report per-item outcomes:
//
//	result, err := service.Borrow(ctx, loans.BorrowRequest{
//		Holder:  ledger.Holder{ID: "u1", DisplayName: "Kim"},
//		Targets: []ledger.ToolKey{{Category: "pick", Name: "Alpha"}},
//	})
//	// err is set only for store failures; result.Failed carries ledger.Reason codes.
//
// Return requests are expanded by Resolve, a pure function over the cache, which supports
// category-only slots and the return-all token.
package loans
