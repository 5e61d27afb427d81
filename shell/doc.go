// Package shell contains infrastructure helpers shared by the tool ledger binaries:
// the zap based logger adapter and retry with exponential backoff for concurrency conflicts.
//
// This package is part of the shell (infrastructure) layer. The domain packages never import it.
package shell
