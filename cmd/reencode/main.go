package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"reencode/internal/runlock"
	"reencode/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if hint := errorHint(err); hint != "" {
				fmt.Fprintln(os.Stderr, "hint:", hint)
			}
		}
		os.Exit(1)
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, runlock.ErrBusy):
		return "another reencode run holds the lock for this tree; wait for it to finish"
	case errors.Is(err, services.ErrConfiguration):
		return "check the configuration (reencode config validate) and flags"
	case errors.Is(err, services.ErrNotFound):
		return "check that the path exists and is readable"
	default:
		return ""
	}
}
