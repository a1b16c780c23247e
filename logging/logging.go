// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logging builds the *slog.Logger used throughout the server.
//
// Records are encoded by zap. A console core always writes to stderr
// and, when a log file is configured, a second core writes to that file
// with its own level.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Config is the logging section of the server config.
type Config struct {
	// DefaultLevel applies to the console output.
	DefaultLevel string `config:"defaultLevel"`

	// LogFileLevel applies to LogFile. It falls back to DefaultLevel.
	LogFileLevel string `config:"logFileLevel"`

	// LogFile is appended to. Empty disables file logging.
	LogFile string `config:"logFile"`

	// Format is either "json" or "console".
	Format string `config:"format"`
}

// Option customizes where logs go.
type Option func(*options)

type options struct {
	name string
	out  io.Writer
	fs   afero.Fs
}

// Name sets the logger name attached to every record.
func Name(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Writer overrides the console output, which defaults to os.Stderr.
func Writer(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// FileSystem overrides where the log file is opened.
func FileSystem(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// InvalidLevelError is returned for a level name zap does not know.
type InvalidLevelError struct {
	Level string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid log level: %q: %s", e.Level, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidLevelError) Unwrap() error {
	return e.Cause
}

// OpenLogFileError is returned when the log file can not be opened.
type OpenLogFileError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e OpenLogFileError) Error() string {
	return fmt.Sprintf("failed to open log file: %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e OpenLogFileError) Unwrap() error {
	return e.Cause
}

// ParseLevel accepts the zap level names plus "trace", which maps to debug.
// An empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return zapcore.DebugLevel, nil
	}

	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return lvl, InvalidLevelError{Level: s, Cause: err}
	}
	return lvl, nil
}

// New builds a logger from cfg. The returned func flushes buffered
// records and closes the log file. It is meant to be run once the server
// has stopped.
func New(cfg Config, opts ...Option) (*slog.Logger, func(context.Context) error, error) {
	o := options{
		out: os.Stderr,
		fs:  afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	consoleLevel, err := ParseLevel(cfg.DefaultLevel)
	if err != nil {
		return nil, nil, err
	}

	enc := encoder(cfg.Format)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(o.out)), consoleLevel),
	}

	var file afero.File
	if cfg.LogFile != "" {
		fileLevel := consoleLevel
		if cfg.LogFileLevel != "" {
			fileLevel, err = ParseLevel(cfg.LogFileLevel)
			if err != nil {
				return nil, nil, err
			}
		}

		file, err = o.fs.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, OpenLogFileError{Path: cfg.LogFile, Cause: err}
		}
		cores = append(cores, zapcore.NewCore(encoder("json"), zapcore.Lock(file), fileLevel))
	}

	core := zapcore.NewTee(cores...)
	h := zapslog.NewHandler(core, zapslog.WithName(o.name))
	logger := slog.New(NewTraceHandler(h))

	stop := func(ctx context.Context) error {
		// Syncing a terminal returns EINVAL on some platforms, so only
		// the file sync result is reported.
		_ = core.Sync()
		if file == nil {
			return nil
		}
		return errors.Join(file.Sync(), file.Close())
	}
	return logger, stop, nil
}

func encoder(format string) zapcore.Encoder {
	if format == "console" {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
}
