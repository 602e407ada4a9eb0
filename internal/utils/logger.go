package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a console logger writing to out (stdout when nil).
func NewLogger(debug bool, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime, NoColor: out != os.Stdout}
	zl := zerolog.New(console).Level(level).With().Timestamp().Str("app", "reelfeed").Logger()
	return &Logger{zl: zl}
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying an extra field on every line.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Debug(v ...interface{}) {
	l.zl.Debug().Msg(join(v))
}

func (l *Logger) Info(v ...interface{}) {
	l.zl.Info().Msg(join(v))
}

func (l *Logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(join(v))
}

func (l *Logger) Error(v ...interface{}) {
	l.zl.Error().Msg(join(v))
}

// join mimics log.Println spacing without the trailing newline.
func join(v []interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(v...), "\n")
}
