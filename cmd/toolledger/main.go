// Command toolledger is the operator CLI of the tool loan ledger.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var exitErr exitError
		if errors.As(err, &exitErr) {
			if exitErr.message != "" {
				_, _ = fmt.Fprintln(os.Stderr, exitErr.message)
			}

			os.Exit(exitErr.code)
		}

		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// exitError ends the process with a specific code, e.g. when a batch had item failures.
type exitError struct {
	code    int
	message string
}

func (e exitError) Error() string {
	return e.message
}
