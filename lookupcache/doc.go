// Package lookupcache provides the in-memory mirror of the tool ledger used for name completion.
//
// The cache holds one immutable Entry per tool, grouped by category and ordered by name.
// Readers never block: they load the current index through an atomic pointer and read each
// entry through its own atomic pointer, so they observe an entry either entirely before or
// entirely after a change.
//
// The cache is kept current in exactly one of two ways per change:
//   - Reload replaces the whole index, e.g. after a tool was added or removed,
//     or after a batch that touched more than one tool.
//   - Patch replaces the entry of exactly one existing tool.
//
// Every query is capped at MaxSuggestions and stops scanning once the cap is reached.
// The cache is a completion aid only; admission decisions are always made against the store.
package lookupcache
