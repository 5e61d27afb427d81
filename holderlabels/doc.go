// Package holderlabels persists the preferred label of each holder in an embedded bbolt file.
//
// The ledger only reads labels (Store implements loans.LabelSource) and snapshots them onto new
// loans. Setting and clearing labels is offered for the operator CLI.
package holderlabels
