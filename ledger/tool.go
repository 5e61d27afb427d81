package ledger

import (
	"strings"
	"time"
)

// DefaultMaxLoans is the maximum number of simultaneously active loans per holder.
const DefaultMaxLoans = 3

// HolderID is the stable external identity of a holder, e.g. a chat user id.
type HolderID = string

// ToolKey identifies a tool by its category and name. The pair is unique across the ledger.
//
// While its properties are exported, it should only be constructed with BuildToolKey
// when the input comes from outside the process.
type ToolKey struct {
	Category string
	Name     string
}

// BuildToolKey is a factory method for ToolKey.
// It trims surrounding whitespace and returns ErrInvalidToolKey if either part is empty.
func BuildToolKey(category, name string) (ToolKey, error) {
	key := ToolKey{
		Category: strings.TrimSpace(category),
		Name:     strings.TrimSpace(name),
	}

	if !key.Valid() {
		return ToolKey{}, ErrInvalidToolKey
	}

	return key, nil
}

// Valid reports whether both parts of the key are non-empty.
func (k ToolKey) Valid() bool {
	return k.Category != "" && k.Name != ""
}

// String renders the key as "[category] name".
func (k ToolKey) String() string {
	return "[" + k.Category + "] " + k.Name
}

// Holder is the entity borrowing tools. It does not exist independently of the loans it appears on.
type Holder struct {
	ID             HolderID
	DisplayName    string
	PreferredLabel string
}

// Validate returns ErrInvalidHolder if the holder has no id.
func (h Holder) Validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return ErrInvalidHolder
	}

	return nil
}

// Loan is the holder snapshot attached to a tool while it is on loan.
// The display name and preferred label are captured at loan time and never refreshed.
type Loan struct {
	HolderID    HolderID
	HolderName  string
	HolderLabel string
	BorrowedAt  time.Time
}

// BuildLoan creates a Loan snapshot for the given holder at the given time.
func BuildLoan(holder Holder, borrowedAt time.Time) Loan {
	return Loan{
		HolderID:    holder.ID,
		HolderName:  holder.DisplayName,
		HolderLabel: holder.PreferredLabel,
		BorrowedAt:  ToBorrowedAt(borrowedAt),
	}
}

// Label returns the preferred label snapshot, falling back to the display name snapshot.
func (l Loan) Label() string {
	if l.HolderLabel != "" {
		return l.HolderLabel
	}

	return l.HolderName
}

// Tool is the authoritative state of one tool.
// HolderID is empty and BorrowedAt is zero iff the tool is available.
type Tool struct {
	Key         ToolKey
	HolderID    HolderID
	HolderName  string
	HolderLabel string
	BorrowedAt  time.Time
}

// OnLoan reports whether the tool currently has a holder.
func (t Tool) OnLoan() bool {
	return t.HolderID != ""
}

// Loan returns the loan attached to the tool and whether there is one.
func (t Tool) Loan() (Loan, bool) {
	if !t.OnLoan() {
		return Loan{}, false
	}

	return Loan{
		HolderID:    t.HolderID,
		HolderName:  t.HolderName,
		HolderLabel: t.HolderLabel,
		BorrowedAt:  t.BorrowedAt,
	}, true
}

// Label returns the holder label to show for this tool, or "" if the tool is available.
func (t Tool) Label() string {
	loan, ok := t.Loan()
	if !ok {
		return ""
	}

	return loan.Label()
}

// ToBorrowedAt normalizes a timestamp to UTC with microsecond precision,
// which is the precision every store preserves.
func ToBorrowedAt(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}

	return t.UTC().Truncate(time.Microsecond)
}
