//go:build !windows

package util

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that end a monitor session.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
