// Package cli implements the aurgrab command-line interface.
//
// Commands are built with cobra on a [CLI] value that owns the logger, the
// loaded configuration and the output styles. Every command that talks to
// the AUR goes through the same path: the configured response cache is
// opened, an engine pool is created with one aurweb client per worker, and
// the command's task is run over its arguments.
//
// # Commands
//
//   - search, msearch: list packages by pattern or maintainer
//   - info: show full package records
//   - download: fetch and unpack build snapshots, with --deps their AUR dependencies
//   - update: compare installed foreign packages against the AUR
//   - cache: manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context. Results go to stdout; logs, warnings and
// the spinner go to stderr so output stays scriptable.
//
// # Exit status
//
// A command exits 1 through [ExitError] when any target failed or produced
// no results; update also exits 1 when updates are pending.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the stderr logger shared by all commands. Timestamps
// carry hundredths of a second so concurrent worker lines can be ordered.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress reports how long a command took once it is done.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg at info level followed by the elapsed time, e.g.
// "Downloaded 3 packages (412ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches the command logger to ctx. setup calls it before any
// RunE, tagging the logger with the command name.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger stored by withLogger, or
// log.Default() when ctx has none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
