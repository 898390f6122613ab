package logging

import (
	"io"

	"github.com/go-kratos/kratos/v2/log"
)

// New builds the application logger: key/value lines on w with a timestamp
// and caller, dropping anything below level ("debug", "info", "warn", "error").
func New(w io.Writer, level string) log.Logger {
	logger := log.With(log.NewStdLogger(w),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(level)))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() log.Logger {
	return log.NewStdLogger(io.Discard)
}
