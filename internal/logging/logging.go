// Package logging sets up the process-wide structured logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New configures the global zerolog logger and returns it. In "dev" env the
// output is console-pretty; otherwise plain JSON lines, matching the
// console/JSON split used by the pack's other ride-matching service.
func New(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "dev" || env == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Logger
}
