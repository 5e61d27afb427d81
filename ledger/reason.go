package ledger

// Reason classifies why a single item of a batch request failed.
// Reasons are reported per item and never abort the whole request.
type Reason string

const (
	// ReasonNotFound means the referenced tool does not exist.
	ReasonNotFound Reason = "not_found"
	// ReasonAlreadyLoaned means the tool is on loan, or a concurrent borrow won the race.
	ReasonAlreadyLoaned Reason = "already_loaned"
	// ReasonQuotaExceeded means the holder would exceed the active loan cap.
	ReasonQuotaExceeded Reason = "quota_exceeded"
	// ReasonNotOwner means a return was attempted by someone other than the recorded holder.
	ReasonNotOwner Reason = "not_owner"
	// ReasonAmbiguousTarget means a category-only return matched more than one active loan.
	ReasonAmbiguousTarget Reason = "ambiguous_target"
	// ReasonNoActiveLoan means a return matched no active loan.
	ReasonNoActiveLoan Reason = "no_active_loan"
)

// String returns the reason code.
func (r Reason) String() string {
	return string(r)
}
