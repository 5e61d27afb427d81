package loans

import (
	"context"
	"time"

	"github.com/guildworks/toolledger/ledger"
)

// Store is the authoritative ledger as the Service needs it.
// sqlengine.Store implements it.
type Store interface {
	AddTool(ctx context.Context, key ledger.ToolKey) (bool, error)
	RemoveTool(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error)
	Status(ctx context.Context, key ledger.ToolKey) (ledger.Tool, bool, error)
	AcquireLoan(ctx context.Context, key ledger.ToolKey, loan ledger.Loan, maxLoans int) (bool, error)
	ReleaseLoan(ctx context.Context, key ledger.ToolKey, holderID ledger.HolderID) (bool, error)
	CountActiveLoans(ctx context.Context, holderID ledger.HolderID) (int, error)
	ListActiveLoans(ctx context.Context, holderID ledger.HolderID) ([]ledger.Tool, error)
	ListAll(ctx context.Context) ([]ledger.Tool, error)
	ListActive(ctx context.Context) ([]ledger.Tool, error)
}

// Clock provides the loan timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns the current time.
func (f ClockFunc) Now() time.Time {
	return f()
}

// LabelSource looks up the preferred label of a holder. An empty label means none is set.
type LabelSource interface {
	PreferredLabel(ctx context.Context, holderID ledger.HolderID) (string, error)
}

// NoticeKind tells why a holder lost a loan without returning it.
type NoticeKind string

const (
	// NoticeRevoked is sent when an administrator returned the tool on the holder's behalf.
	NoticeRevoked NoticeKind = "revoked"
	// NoticeRemoved is sent when the tool was removed from the ledger while on loan.
	NoticeRemoved NoticeKind = "removed"
)

// RevocationNotice is what the previous holder is told after losing a loan.
type RevocationNotice struct {
	Kind      NoticeKind
	Key       ledger.ToolKey
	Loan      ledger.Loan
	RevokedAt time.Time
}

// Notifier delivers revocation notices, e.g. as a direct message.
// Delivery is best effort; a failure never undoes the state change.
type Notifier interface {
	NotifyRevoked(ctx context.Context, notice RevocationNotice) error
}
