package loans

import (
	"context"

	"github.com/guildworks/toolledger/ledger"
)

// AddTool registers a new tool. It returns false if the tool already exists.
// The cache is reloaded, since a new category may have appeared.
func (s *Service) AddTool(ctx context.Context, key ledger.ToolKey) (bool, error) {
	key, err := ledger.BuildToolKey(key.Category, key.Name)
	if err != nil {
		return false, err
	}

	observer, ctx := s.startOperation(ctx, operationAddTool, logAttrTool, key.String())

	added, err := s.store.AddTool(ctx, key)
	if err != nil {
		observer.finishError(err)
		return false, err
	}

	if added {
		s.reloadCache(ctx)
	}

	observer.finishSuccess(logAttrTool, key.String(), logAttrAdded, added)

	return added, nil
}

// RemoveTool deletes a tool. Removing a tool that does not exist is a no-op returning false.
//
// A tool that is on loan is removed together with its loan: the previous holder receives the
// same best-effort notice as for RevokeLoan, and a warning is logged.
func (s *Service) RemoveTool(ctx context.Context, key ledger.ToolKey) (bool, error) {
	key, err := ledger.BuildToolKey(key.Category, key.Name)
	if err != nil {
		return false, err
	}

	observer, ctx := s.startOperation(ctx, operationRemoveTool, logAttrTool, key.String())

	removed, found, err := s.store.RemoveTool(ledger.WithStrongConsistency(ctx), key)
	if err != nil {
		observer.finishError(err)
		return false, err
	}

	if !found {
		observer.finishSuccess(logAttrTool, key.String(), logAttrRemoved, false)
		return false, nil
	}

	s.reloadCache(ctx)

	if loan, onLoan := removed.Loan(); onLoan {
		s.logWarn(ctx, logMsgRemovedWhileLoaned, logAttrTool, key.String(), logAttrHolderID, loan.HolderID)

		_, _ = s.notify(ctx, RevocationNotice{
			Kind:      NoticeRemoved,
			Key:       key,
			Loan:      loan,
			RevokedAt: s.clock.Now(),
		})
	}

	observer.finishSuccess(logAttrTool, key.String(), logAttrRemoved, true)

	return true, nil
}
