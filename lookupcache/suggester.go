package lookupcache

import "github.com/guildworks/toolledger/ledger"

// Suggester is the read-only completion surface of the cache, as handed to interface layers.
type Suggester interface {
	Categories(filter string) []string
	AvailableNames(category, filter string) []string
	HeldNames(category string, holderID ledger.HolderID, filter string) []string
	LoanedNames(category, filter string) []string
	Names(category, filter string) []string
	HolderCategories(holderID ledger.HolderID, filter string) []string
}

var _ Suggester = (*Cache)(nil)
