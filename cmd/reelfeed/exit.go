package main

import (
	"errors"

	"reelfeed/internal/clients/tracker"
	"reelfeed/internal/config"
)

const (
	exitOK              = 0
	exitFailure         = 1
	exitTemplateCreated = 2
)

// exitCode maps a command error to the process exit status. A torrent that
// never became ready is logged by the run and retried next time, so it is not
// a failure of the process.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrTemplateCreated):
		return exitTemplateCreated
	case errors.Is(err, tracker.ErrPayloadNotReady):
		return exitOK
	default:
		return exitFailure
	}
}
