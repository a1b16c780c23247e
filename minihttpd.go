// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package minihttpd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/z5labs/minihttpd/config"
	"github.com/z5labs/minihttpd/fileroot"
	"github.com/z5labs/minihttpd/logging"
	"github.com/z5labs/minihttpd/otelconfig"
	"github.com/z5labs/minihttpd/server"
)

// EnvPrefix is stripped from environment variables which override config,
// e.g. MINIHTTPD_SERVER_PORT sets server.port.
const EnvPrefix = "MINIHTTPD"

// DefaultConfigFile is read from the working directory if it exists.
const DefaultConfigFile = "config.toml"

// Config is the complete server config.
type Config struct {
	Server  server.Config     `config:"server"`
	Logging logging.Config    `config:"logging"`
	OTel    otelconfig.Config `config:"otel"`
}

// Defaults returns the lowest precedence config source.
func Defaults() config.Map {
	return config.Map{
		"server": map[string]any{
			"address":  server.DefaultAddress,
			"port":     server.DefaultPort,
			"root":     fileroot.DefaultRoot,
			"workers":  0,
			"zeroRead": server.ZeroReadFail.String(),
		},
		"logging": map[string]any{
			"defaultLevel": "info",
			"format":       "console",
		},
		"otel": map[string]any{
			"exporter":    otelconfig.None,
			"serviceName": "minihttpd",
		},
	}
}

// ConfigFile reads path as YAML if it ends in .yaml or .yml and as TOML
// otherwise. The file is rendered as a text template first. A missing
// file reads as empty unless required is set.
func ConfigFile(path string, required bool) config.Source {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	var opts []config.FileReaderOption
	if !required {
		opts = append(opts, config.Optional())
	}

	r := config.RenderTextTemplate(config.NewFileReader(os.DirFS(dir), name, opts...))
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return config.FromYaml(r)
	default:
		return config.FromToml(r)
	}
}

// Sources orders config sources from lowest to highest precedence:
// defaults, file, environment, then overrides in the order given.
func Sources(file config.Source, overrides ...config.Source) []config.Source {
	srcs := []config.Source{
		Defaults(),
		file,
		config.FromEnv(config.EnvPrefix(EnvPrefix)),
	}
	return append(srcs, overrides...)
}

// App is a fully built server ready to run.
type App interface {
	Run(context.Context) error
}

// AppBuilder builds an App from the merged config.
type AppBuilder interface {
	Build(ctx context.Context, cfg Config) (App, error)
}

// AppBuilderFunc is a functional implementation of [AppBuilder].
type AppBuilderFunc func(context.Context, Config) (App, error)

// Build implements the [AppBuilder] interface.
func (f AppBuilderFunc) Build(ctx context.Context, cfg Config) (App, error) {
	return f(ctx, cfg)
}

// Phase names the step of Run that failed.
type Phase string

const (
	PhaseConfig Phase = "config"
	PhaseBuild  Phase = "build"
	PhaseServe  Phase = "serve"
)

// Error is returned by Run and records the phase which failed.
type Error struct {
	Phase Phase
	Cause error
}

// Error implements the [builtin.error] interface.
func (e Error) Error() string {
	return fmt.Sprintf("minihttpd: %s: %s", e.Phase, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e Error) Unwrap() error {
	return e.Cause
}

// Run merges srcs into a Config, builds the App from it and runs it
// until ctx is cancelled or the server stops on its own.
func Run(ctx context.Context, builder AppBuilder, srcs ...config.Source) error {
	m, err := config.Read(srcs...)
	if err != nil {
		return Error{Phase: PhaseConfig, Cause: err}
	}

	var cfg Config
	err = m.Unmarshal(&cfg)
	if err != nil {
		return Error{Phase: PhaseConfig, Cause: err}
	}

	app, err := builder.Build(ctx, cfg)
	if err != nil {
		return Error{Phase: PhaseBuild, Cause: err}
	}

	err = app.Run(ctx)
	if err != nil {
		return Error{Phase: PhaseServe, Cause: err}
	}
	return nil
}

// Process exit codes reported by ExitCode.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitBind     = 3
	ExitZeroRead = 4
)

// ExitCode maps an error returned by Run onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var zerr server.ZeroBytesReadError
	if errors.As(err, &zerr) {
		return ExitZeroRead
	}

	var berr server.BindError
	if errors.As(err, &berr) {
		return ExitBind
	}

	var rerr Error
	if errors.As(err, &rerr) && rerr.Phase == PhaseConfig {
		return ExitConfig
	}
	return ExitFailure
}
