// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig initializes the global OpenTelemetry tracer and
// meter providers.
package otelconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names.
const (
	None   = "none"
	Stdout = "stdout"
	OTLP   = "otlp"
)

// Config is the otel section of the server config.
type Config struct {
	// Exporter is one of "none", "stdout" or "otlp". Empty means "none".
	Exporter string `config:"exporter"`

	// Target is the gRPC target of the OTLP collector.
	Target string `config:"target"`

	ServiceName string `config:"serviceName"`
}

// UnknownExporterError
type UnknownExporterError struct {
	Exporter string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown telemetry exporter: %s", e.Exporter)
}

// Option customizes Init.
type Option func(*options)

type options struct {
	out     io.Writer
	readers []sdkmetric.Reader
}

// Writer overrides where the stdout exporters write to.
func Writer(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// MetricReader registers r with the meter provider alongside the
// exporter's periodic reader.
func MetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.readers = append(o.readers, r)
	}
}

// Init configures the global tracer provider, meter provider and text
// map propagator. The returned func flushes and shuts down both providers.
func Init(ctx context.Context, cfg Config, opts ...Option) (func(context.Context) error, error) {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)
	switch cfg.Exporter {
	case "", None:
		return func(context.Context) error { return nil }, nil
	case Stdout:
		spans, metrics, err = stdoutExporters(o.out)
	case OTLP:
		spans, metrics, err = otlpExporters(ctx, cfg.Target)
	default:
		return nil, UnknownExporterError{Exporter: cfg.Exporter}
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mpOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
	}
	for _, r := range o.readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	// need to set this so traces can propagate
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func stdoutExporters(w io.Writer) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}
	return spans, metrics, nil
}

func otlpExporters(ctx context.Context, target string) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	// TLS is recommended in production.
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())

	spans, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(target),
		otlptracegrpc.WithDialOption(creds),
	)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(target),
		otlpmetricgrpc.WithDialOption(creds),
	)
	if err != nil {
		return nil, nil, err
	}
	return spans, metrics, nil
}
