//go:build windows

package util

import "os"

// ShutdownSignals returns the signals that end a monitor session.
// Windows only delivers os.Interrupt to console processes.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
