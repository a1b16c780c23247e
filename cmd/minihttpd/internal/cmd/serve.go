// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/z5labs/minihttpd"
	"github.com/z5labs/minihttpd/app"
	"github.com/z5labs/minihttpd/config"
	"github.com/z5labs/minihttpd/dispatch"
	"github.com/z5labs/minihttpd/fileroot"
	"github.com/z5labs/minihttpd/logging"
	"github.com/z5labs/minihttpd/otelconfig"
	"github.com/z5labs/minihttpd/server"
)

// flagKeys maps a flag name onto the config key it overrides.
var flagKeys = map[string]string{
	"address":       "server.address",
	"port":          "server.port",
	"root":          "server.root",
	"workers":       "server.workers",
	"zero-read":     "server.zeroRead",
	"log-level":     "logging.defaultLevel",
	"log-file":      "logging.logFile",
	"log-format":    "logging.format",
	"otel-exporter": "otel.exporter",
	"otel-target":   "otel.target",
}

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve files from a root directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, configPath)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", minihttpd.DefaultConfigFile, "config file, TOML or YAML by extension")
	fs.String("address", server.DefaultAddress, "address to bind")
	fs.IntP("port", "p", server.DefaultPort, "port to bind")
	fs.StringP("root", "d", fileroot.DefaultRoot, "prefix for every request path")
	fs.Int("workers", 0, "connections handled at once, 0 handles them one at a time")
	fs.String("zero-read", server.ZeroReadFail.String(), `what an empty read does: "fail" or "exit"`)
	fs.String("log-level", "info", "console log level")
	fs.String("log-file", "", "also log to this file")
	fs.String("log-format", "console", `"console" or "json"`)
	fs.String("otel-exporter", otelconfig.None, `trace exporter: "none", "stdout" or "otlp"`)
	fs.String("otel-target", "", "OTLP collector gRPC target")
	return cmd
}

func serve(cmd *cobra.Command, configPath string) error {
	return minihttpd.Run(
		cmd.Context(),
		minihttpd.AppBuilderFunc(buildApp),
		sources(cmd.Flags(), configPath)...,
	)
}

// sources only requires the config file if its path was given explicitly.
func sources(flags *pflag.FlagSet, configPath string) []config.Source {
	return minihttpd.Sources(
		minihttpd.ConfigFile(configPath, flags.Changed("config")),
		config.FromViper(changedFlags(flags)),
	)
}

// changedFlags only carries flags the user set so flag defaults
// never override the config file or environment.
func changedFlags(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		v.Set(key, f.Value.String())
	})
	return v
}

func buildApp(ctx context.Context, cfg minihttpd.Config) (minihttpd.App, error) {
	log, stopLogging, err := logging.New(cfg.Logging, logging.Name("minihttpd"))
	if err != nil {
		return nil, err
	}

	stopTracing, err := otelconfig.Init(ctx, cfg.OTel)
	if err != nil {
		return nil, joinStop(ctx, err, stopLogging)
	}

	resolver := fileroot.New(afero.NewOsFs(), fileroot.Root(cfg.Server.Root))
	srv := server.New(
		dispatch.New(resolver),
		server.Logger(log),
		server.Workers(cfg.Server.Workers),
		server.OnZeroRead(cfg.Server.ZeroRead),
	)
	rt := server.NewRuntime(cfg.Server.Addr(), srv)

	a := app.WithLifecycleHooks(app.Recover(rt), app.Lifecycle{
		PreRun: app.LifecycleHookFunc(func(ctx context.Context) error {
			log.InfoContext(
				ctx,
				"starting server",
				slog.String("root", resolver.Root()),
				slog.Int("workers", cfg.Server.Workers),
				slog.String("zero_read", cfg.Server.ZeroRead.String()),
			)
			return nil
		}),
		PostRun: app.ComposeHooks(
			app.LifecycleHookFunc(stopTracing),
			app.LifecycleHookFunc(func(ctx context.Context) error {
				log.InfoContext(ctx, "server stopped")
				return stopLogging(ctx)
			}),
		),
	})
	return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
}

func joinStop(ctx context.Context, err error, stop func(context.Context) error) error {
	serr := stop(ctx)
	if serr == nil {
		return err
	}
	return errors.Join(err, serr)
}
