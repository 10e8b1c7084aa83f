// Package logging provides the leveled, optionally colored run log. It is a
// thin printf-style surface over zap: a console core for the terminal plus
// an optional plain file core, joined with a tee. Per-session progress,
// skip decisions, and the end-of-run summary all go through [Logger].
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ephyslab/sortpipe/internal/config"
)

// Logger wraps the zap cores behind the printf-style API the rest of the
// pipeline logs with. Success is an INFO-level line tagged with an ok
// status field so it stays grep-able in file logs.
type Logger struct {
	z    *zap.Logger
	file *os.File
}

var successField = zap.String("status", "ok")

// New builds a Logger from cfg: console core on stdout (colored per
// ColorMode), error level duplicated to stderr, and an optional append-only
// file core when LogFile is set. Call Close when done.
func New(cfg *config.Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if ColorEnabled(cfg.ColorMode) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	console := zapcore.NewConsoleEncoder(encCfg)

	belowError := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(os.Stdout), belowError),
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), zap.ErrorLevel),
	}

	var file *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f

		fileEnc := zap.NewDevelopmentEncoderConfig()
		fileEnc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		fileEnc.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEnc), zapcore.Lock(f), level))
	}

	return &Logger{
		z:    zap.New(zapcore.NewTee(cores...)),
		file: file,
	}, nil
}

// NewNop returns a Logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// ColorEnabled reports whether ANSI color should be used for the given
// mode; ColorAuto checks the terminal and the NO_COLOR convention.
func ColorEnabled(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Close flushes the cores and closes the log file if one was opened.
func (l *Logger) Close() error {
	_ = l.z.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.z.Info(fmt.Sprintf(format, args...))
}

// Success logs at INFO level with an ok status marker.
func (l *Logger) Success(format string, args ...interface{}) {
	l.z.Info(fmt.Sprintf(format, args...), successField)
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.z.Warn(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level, duplicated to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.z.Error(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level; dropped unless verbose was set at construction.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.z.Debug(fmt.Sprintf(format, args...))
}
