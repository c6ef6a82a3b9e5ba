package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

// New returns a colored console logger at the given level.
func New(level slog.Level) Logger {
	return slog.New(newTint(os.Stderr, level))
}

// NewWithSentry is New with error records also reported to Sentry.
// sentry.Init must have been called for reports to go anywhere.
func NewWithSentry(level slog.Level) Logger {
	return slog.New(NewSentryHandler(newTint(os.Stderr, level)))
}

func newTint(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
