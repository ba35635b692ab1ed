package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Development gets debug level and a
// console writer; every other environment logs JSON at info level. The
// component name is attached to every line so api and worker output can be
// told apart in a shared sink.
func NewLogger(appEnv, component string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, component)
}

func newLogger(out io.Writer, appEnv, component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger()
}
