package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var (
	level = new(slog.LevelVar)

	logger = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(
		tint.NewHandler(
			w, &tint.Options{
				Level:      level,
				TimeFormat: "2006-01-02T15:04:05.000Z07:00",
				NoColor:    noColor,
			},
		),
	)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logger = newLogger(w)
}

func SetDebug(enable bool) {
	if enable {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Infof(msg string, args ...any) {
	logger.Info(fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...any) {
	logger.Warn(fmt.Sprintf(msg, args...))
}

func Error(msg string, err error) {
	logger.Error(msg, "error", err)
}

func Errorf(msg string, args ...any) {
	logger.Error(fmt.Sprintf(msg, args...))
}

func Fatalf(format string, v ...any) {
	logger.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Debugf(msg string, args ...any) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug(fmt.Sprintf(msg, args...))
}
