// Package logger provides the configured zerolog logger for the service.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the given service name. All components
// derive their loggers from this one.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
