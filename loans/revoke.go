package loans

import (
	"context"

	"github.com/guildworks/toolledger/ledger"
)

const maxRevokeAttempts = 3

// RevokeLoan is the administrative return of a tool on behalf of its holder.
//
// The current holder is read first and the release is conditioned on that holder, so a loan
// granted in between is never cleared by accident. After the change is persisted and the
// cache is patched, the previous holder is notified with a bounded timeout. A failed
// notification is recorded in the result and logged; it never undoes the return.
func (s *Service) RevokeLoan(ctx context.Context, key ledger.ToolKey) (RevokeResult, error) {
	key, err := ledger.BuildToolKey(key.Category, key.Name)
	if err != nil {
		return RevokeResult{}, err
	}

	observer, ctx := s.startOperation(ctx, operationRevoke, logAttrTool, key.String())
	ctx = ledger.WithStrongConsistency(ctx)

	result := RevokeResult{Key: key}

	for attempt := 0; attempt < maxRevokeAttempts; attempt++ {
		tool, found, statusErr := s.store.Status(ctx, key)
		if statusErr != nil {
			observer.finishError(statusErr)
			return RevokeResult{}, statusErr
		}

		loan, onLoan := tool.Loan()

		switch {
		case !found:
			result.Reason = ledger.ReasonNotFound
		case !onLoan:
			result.Reason = ledger.ReasonNoActiveLoan
		}

		if result.Reason != "" {
			observer.recordOutcome(result.Reason.String())
			observer.finishSuccess(logAttrReason, result.Reason.String())

			return result, nil
		}

		released, releaseErr := s.store.ReleaseLoan(ctx, key, loan.HolderID)
		if releaseErr != nil {
			observer.finishError(releaseErr)
			return RevokeResult{}, releaseErr
		}

		if !released {
			continue
		}

		result.Revoked = true
		result.PreviousLoan = loan

		s.syncCache(ctx, []ledger.ToolKey{key})

		result.Notified, result.NotifyErr = s.notify(ctx, RevocationNotice{
			Kind:      NoticeRevoked,
			Key:       key,
			Loan:      loan,
			RevokedAt: s.clock.Now(),
		})

		observer.recordOutcome(OutcomeSucceeded)
		observer.finishSuccess(logAttrHolderID, loan.HolderID, logAttrNotified, result.Notified)

		return result, nil
	}

	observer.finishError(ledger.ErrConcurrencyConflict)

	return RevokeResult{}, ledger.ErrConcurrencyConflict
}

// notify delivers a revocation notice with the configured timeout.
// It reports whether the notice was delivered; no notifier means nothing to deliver.
func (s *Service) notify(ctx context.Context, notice RevocationNotice) (bool, error) {
	if s.notifier == nil {
		return false, nil
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyRevoked(notifyCtx, notice); err != nil {
		s.recordNotification(ctx, notice.Kind, statusError)
		s.logWarn(ctx, logMsgNotifyFailed,
			logAttrHolderID, notice.Loan.HolderID,
			logAttrTool, notice.Key.String(),
			logAttrReason, string(notice.Kind),
			logAttrError, err.Error(),
		)

		return false, err
	}

	s.recordNotification(ctx, notice.Kind, statusSuccess)

	return true, nil
}
