package loans

import (
	"context"
	"strings"

	"github.com/guildworks/toolledger/ledger"
)

const maxReleaseAttempts = 3

// ReturnTools returns tools held by the requesting holder.
//
// Slots are first expanded by Resolve against the cache; every resulting target is then
// released with a conditional write on the requesting holder, so a holder can never return
// someone else's tool. Per-target failures and resolver warnings are reported in the result;
// only store failures are returned as errors.
func (s *Service) ReturnTools(ctx context.Context, req ReturnRequest) (ReturnResult, error) {
	if strings.TrimSpace(req.HolderID) == "" {
		return ReturnResult{}, ledger.ErrInvalidHolder
	}

	nonEmpty := 0
	for _, slot := range req.Slots {
		if !slot.IsEmpty() {
			nonEmpty++
		}
	}

	switch {
	case nonEmpty == 0:
		return ReturnResult{}, ledger.ErrNoTargets
	case len(req.Slots) > MaxTargetsPerCall:
		return ReturnResult{}, ledger.ErrTooManyTargets
	}

	observer, ctx := s.startOperation(ctx, operationReturn, logAttrHolderID, req.HolderID)
	ctx = ledger.WithStrongConsistency(ctx)

	targets, warnings := Resolve(s.cache, req.HolderID, req.Slots, s.allToken)

	result := ReturnResult{
		Succeeded: make([]ledger.ToolKey, 0, len(targets)),
		Failed:    make([]Failure, 0),
		Warnings:  warnings,
	}

	for _, key := range targets {
		reason, released, err := s.release(ctx, key, req.HolderID)
		if err != nil {
			s.syncCache(ctx, result.Succeeded)
			observer.finishError(err)

			return ReturnResult{}, err
		}

		if released {
			result.Succeeded = append(result.Succeeded, key)
			continue
		}

		result.Failed = append(result.Failed, Failure{Key: key, Reason: reason})
	}

	s.syncCache(ctx, result.Succeeded)

	observer.recordBatch(result.Succeeded, result.Failed)
	for _, warning := range result.Warnings {
		observer.recordOutcome(warning.Reason.String())
	}

	observer.finishSuccess(
		logAttrSucceeded, len(result.Succeeded),
		logAttrFailed, len(result.Failed),
		logAttrWarnings, len(result.Warnings),
	)

	return result, nil
}

// release attempts one conditional release by holderID and classifies a miss by a follow-up point read.
func (s *Service) release(ctx context.Context, key ledger.ToolKey, holderID ledger.HolderID) (ledger.Reason, bool, error) {
	if !key.Valid() {
		return ledger.ReasonNotFound, false, nil
	}

	for attempt := 0; attempt < maxReleaseAttempts; attempt++ {
		released, err := s.store.ReleaseLoan(ctx, key, holderID)
		if err != nil {
			return "", false, err
		}

		if released {
			return "", true, nil
		}

		tool, found, err := s.store.Status(ctx, key)
		if err != nil {
			return "", false, err
		}

		if reason, ok := classifyReleaseMiss(tool, found, holderID); ok {
			return reason, false, nil
		}
	}

	return "", false, ledger.ErrConcurrencyConflict
}
