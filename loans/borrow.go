package loans

import (
	"context"

	"github.com/guildworks/toolledger/ledger"
)

// Borrow tries to put up to MaxTargetsPerCall tools on loan to the requesting holder.
//
// The quota is evaluated once for the whole call: if the holder's active loans plus the number
// of distinct targets exceed the cap, every target fails with quota_exceeded and nothing is attempted.
// Otherwise each target is attempted with one conditional write, so concurrent borrows of
// the same tool can never both succeed. Per-target failures are reported in the result;
// only store failures are returned as errors.
func (s *Service) Borrow(ctx context.Context, req BorrowRequest) (BorrowResult, error) {
	if err := req.Holder.Validate(); err != nil {
		return BorrowResult{}, err
	}

	targets, err := distinctKeys(req.Targets)
	if err != nil {
		return BorrowResult{}, err
	}

	switch {
	case len(targets) == 0:
		return BorrowResult{}, ledger.ErrNoTargets
	case len(targets) > MaxTargetsPerCall:
		return BorrowResult{}, ledger.ErrTooManyTargets
	}

	observer, ctx := s.startOperation(ctx, operationBorrow, logAttrHolderID, req.Holder.ID)
	ctx = ledger.WithStrongConsistency(ctx)

	holder := s.withPreferredLabel(ctx, req.Holder)
	result := BorrowResult{
		Holder:     holder,
		BorrowedAt: ledger.ToBorrowedAt(s.clock.Now()),
		Succeeded:  make([]ledger.ToolKey, 0, len(targets)),
		Failed:     make([]Failure, 0),
	}

	activeLoans, err := s.store.CountActiveLoans(ctx, holder.ID)
	if err != nil {
		observer.finishError(err)
		return BorrowResult{}, err
	}

	decision := decideBorrow(activeLoans, len(targets), s.maxLoans)
	if !decision.attempt {
		for _, key := range targets {
			result.Failed = append(result.Failed, Failure{Key: key, Reason: decision.failureReason})
		}

		observer.recordBatch(result.Succeeded, result.Failed)
		observer.finishSuccess(logAttrSucceeded, 0, logAttrFailed, len(result.Failed), logAttrReason, decision.failureReason.String())

		return result, nil
	}

	loan := ledger.BuildLoan(holder, result.BorrowedAt)

	for _, key := range targets {
		reason, acquired, acquireErr := s.acquire(ctx, key, loan)
		if acquireErr != nil {
			s.syncCache(ctx, result.Succeeded)
			observer.finishError(acquireErr)

			return BorrowResult{}, acquireErr
		}

		if acquired {
			result.Succeeded = append(result.Succeeded, key)
			continue
		}

		result.Failed = append(result.Failed, Failure{Key: key, Reason: reason})
	}

	s.syncCache(ctx, result.Succeeded)

	observer.recordBatch(result.Succeeded, result.Failed)
	observer.finishSuccess(logAttrSucceeded, len(result.Succeeded), logAttrFailed, len(result.Failed))

	return result, nil
}

// acquire attempts one conditional write and classifies a miss by a follow-up point read.
func (s *Service) acquire(ctx context.Context, key ledger.ToolKey, loan ledger.Loan) (ledger.Reason, bool, error) {
	acquired, err := s.store.AcquireLoan(ctx, key, loan, s.maxLoans)
	if err != nil {
		return "", false, err
	}

	if acquired {
		return "", true, nil
	}

	tool, found, err := s.store.Status(ctx, key)
	if err != nil {
		return "", false, err
	}

	return classifyAcquireMiss(tool, found), false, nil
}

// withPreferredLabel snapshots the holder's preferred label if none was supplied.
// A failing lookup is logged and the loan proceeds without a label.
func (s *Service) withPreferredLabel(ctx context.Context, holder ledger.Holder) ledger.Holder {
	if s.labels == nil || holder.PreferredLabel != "" {
		return holder
	}

	label, err := s.labels.PreferredLabel(ctx, holder.ID)
	if err != nil {
		s.logWarn(ctx, logMsgLabelLookupFailed, logAttrHolderID, holder.ID, logAttrError, err.Error())
		return holder
	}

	holder.PreferredLabel = label

	return holder
}
