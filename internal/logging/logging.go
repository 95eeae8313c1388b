// Package logging builds the zerolog loggers used by the server and
// client cores, and a colored stderr helper for user-facing failures.
// Setup follows the teacher's cmd/server and cmd/client setupLogging.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Channel names the half of the system a logger belongs to. Both
// channels share the same level and format but carry a "channel"
// field so server and client log lines are easy to tell apart when a
// single process runs both (compose mode spawns several client
// channels side by side).
type Channel string

const (
	Server Channel = "SERVER"
	Client Channel = "CLIENT"
)

// New builds a zerolog.Logger for channel at level, writing to stdout
// in either "console" (human, colored) or "json" (machine) format.
func New(channel Channel, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var log zerolog.Logger
	if format == "json" {
		log = zerolog.New(os.Stdout).With().Timestamp().Str("channel", string(channel)).Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		log = zerolog.New(output).With().Timestamp().Str("channel", string(channel)).Logger()
	}
	return log
}

const (
	ansiRed   = "\033[31m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// Fail prints a `! message` line to stderr in bold red, for failures a
// user needs to see even with logging turned down.
func Fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s%s ! %s%s\n", ansiBold, ansiRed, fmt.Sprintf(format, args...), ansiReset)
}
