// Package promadapters provides a Prometheus implementation of the ledger metrics interfaces.
package promadapters
