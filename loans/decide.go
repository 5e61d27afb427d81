package loans

import (
	"github.com/guildworks/toolledger/ledger"
)

// borrowDecision is the admission verdict for a whole borrow call.
type borrowDecision struct {
	attempt       bool
	failureReason ledger.Reason
}

// decideBorrow evaluates the quota once for the whole call.
// This is a pure function: the active loan count is read by the caller.
//
// Business Rules:
//
//	GIVEN: A holder with activeLoans tools on loan, requesting requested distinct tools
//	WHEN: activeLoans + requested exceeds maxLoans
//	THEN: every requested tool fails with quota_exceeded and nothing is attempted
//	OTHERWISE: every requested tool is attempted individually
func decideBorrow(activeLoans, requested, maxLoans int) borrowDecision {
	if activeLoans+requested > maxLoans {
		return borrowDecision{failureReason: ledger.ReasonQuotaExceeded}
	}

	return borrowDecision{attempt: true}
}

// classifyAcquireMiss explains why a conditional acquire did not apply,
// based on a point read made right after it.
//
//	tool missing      -> not_found
//	tool has a holder -> already_loaned (including a concurrent winner)
//	tool available    -> quota_exceeded (the quota guard of the write rejected it)
func classifyAcquireMiss(tool ledger.Tool, found bool) ledger.Reason {
	switch {
	case !found:
		return ledger.ReasonNotFound
	case tool.OnLoan():
		return ledger.ReasonAlreadyLoaned
	default:
		return ledger.ReasonQuotaExceeded
	}
}

// classifyReleaseMiss explains why a conditional release by holderID did not apply.
//
//	tool missing                 -> not_found
//	tool available               -> no_active_loan
//	tool held by someone else    -> not_owner
//	tool held by holderID itself -> the caller has to retry; reported as ok=false
func classifyReleaseMiss(tool ledger.Tool, found bool, holderID ledger.HolderID) (ledger.Reason, bool) {
	switch {
	case !found:
		return ledger.ReasonNotFound, true
	case !tool.OnLoan():
		return ledger.ReasonNoActiveLoan, true
	case tool.HolderID != holderID:
		return ledger.ReasonNotOwner, true
	default:
		return "", false
	}
}

// distinctKeys validates and deduplicates keys, preserving first-seen order.
func distinctKeys(keys []ledger.ToolKey) ([]ledger.ToolKey, error) {
	seen := make(map[ledger.ToolKey]struct{}, len(keys))
	result := make([]ledger.ToolKey, 0, len(keys))

	for _, raw := range keys {
		key, err := ledger.BuildToolKey(raw.Category, raw.Name)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		result = append(result, key)
	}

	return result, nil
}
