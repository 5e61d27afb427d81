package loans

import (
	"context"

	"github.com/guildworks/toolledger/ledger"
)

// Status returns the authoritative state of one tool from the store.
func (s *Service) Status(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error) {
	key, err := ledger.BuildToolKey(key.Category, key.Name)
	if err != nil {
		return ledger.Tool{}, false, err
	}

	observer, ctx := s.startOperation(ctx, operationStatus, logAttrTool, key.String())

	tool, found, err := s.store.Status(ctx, key)
	if err != nil {
		observer.finishError(err)
		return ledger.Tool{}, false, err
	}

	observer.finishSuccess()

	return tool, found, nil
}

// CategorySnapshot returns every tool of a category with its holder label and loan time, from the cache.
// It returns false if the category is unknown.
func (s *Service) CategorySnapshot(category string) ([]SnapshotRow, bool) {
	items, ok := s.cache.Category(category)
	if !ok {
		return nil, false
	}

	rows := make([]SnapshotRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, SnapshotRow{
			Name:        item.Key.Name,
			HolderLabel: item.Entry.Label(),
			BorrowedAt:  item.Entry.BorrowedAt,
		})
	}

	return rows, true
}

// MyLoans returns the tools held by holderID, oldest loan first, from the store.
func (s *Service) MyLoans(ctx context.Context, holderID ledger.HolderID) ([]ledger.Tool, error) {
	if holderID == "" {
		return nil, ledger.ErrInvalidHolder
	}

	observer, ctx := s.startOperation(ctx, operationMyLoans, logAttrHolderID, holderID)

	tools, err := s.store.ListActiveLoans(ctx, holderID)
	if err != nil {
		observer.finishError(err)
		return nil, err
	}

	observer.finishSuccess(logAttrToolCount, len(tools))

	return tools, nil
}

// AllLoans returns every active loan, oldest first. It tolerates reading from a replica.
func (s *Service) AllLoans(ctx context.Context) ([]LoanReport, error) {
	observer, ctx := s.startOperation(ctx, operationAllLoans)

	tools, err := s.store.ListActive(ledger.WithEventualConsistency(ctx))
	if err != nil {
		observer.finishError(err)
		return nil, err
	}

	reports := make([]LoanReport, 0, len(tools))
	for _, tool := range tools {
		reports = append(reports, LoanReport{
			Key:         tool.Key,
			HolderID:    tool.HolderID,
			HolderLabel: tool.Label(),
			BorrowedAt:  tool.BorrowedAt,
		})
	}

	observer.finishSuccess(logAttrToolCount, len(reports))

	return reports, nil
}

// AllTools returns the full inventory ordered by category, then name. It tolerates reading from a replica.
func (s *Service) AllTools(ctx context.Context) ([]ledger.Tool, error) {
	observer, ctx := s.startOperation(ctx, operationAllTools)

	tools, err := s.store.ListAll(ledger.WithEventualConsistency(ctx))
	if err != nil {
		observer.finishError(err)
		return nil, err
	}

	observer.finishSuccess(logAttrToolCount, len(tools))

	return tools, nil
}
