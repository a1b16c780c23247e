// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server accepts connections and serves exactly one request on each.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
	"unicode/utf8"

	"github.com/z5labs/minihttpd/internal/try"
	"github.com/z5labs/minihttpd/logging"
	"github.com/z5labs/minihttpd/response"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/z5labs/minihttpd/server"

// BufferSize is the most a request may be. Anything past it is never read.
const BufferSize = 1024

// Handler turns the text of a request into a response.
type Handler interface {
	Handle(ctx context.Context, raw string) (response.Response, error)
}

// ReadError
type ReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReadError) Unwrap() error {
	return e.Cause
}

// ZeroBytesReadError is returned when a client connects but sends nothing.
type ZeroBytesReadError struct {
	Peer string
}

// Error implements the [builtin.error] interface.
func (e ZeroBytesReadError) Error() string {
	return fmt.Sprintf("read zero bytes from request: %s", e.Peer)
}

// DecodeError is returned when a request is not valid UTF-8.
type DecodeError struct {
	Peer string
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to convert request to UTF-8: %s", e.Peer)
}

// WriteError
type WriteError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e WriteError) Error() string {
	return fmt.Sprintf("failed to write response: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}

// FlushError
type FlushError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e FlushError) Error() string {
	return fmt.Sprintf("failed to flush response: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e FlushError) Unwrap() error {
	return e.Cause
}

// Option configures a Server.
type Option func(*Server)

// Logger sets the logger. The default discards everything.
func Logger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// Workers sets how many connections may be handled concurrently.
// Zero or less handles one connection at a time.
func Workers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// OnZeroRead sets the ZeroReadPolicy. The default is ZeroReadFail.
func OnZeroRead(p ZeroReadPolicy) Option {
	return func(s *Server) {
		s.zeroRead = p
	}
}

// Server serves a single request per accepted connection.
type Server struct {
	handler  Handler
	log      *slog.Logger
	workers  int
	zeroRead ZeroReadPolicy

	tracer    trace.Tracer
	responses metric.Int64Counter
	sent      metric.Int64Histogram
}

// New returns a Server which answers requests with h.
func New(h Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentationName)
	responses, err := meter.Int64Counter(
		"minihttpd.server.responses",
		metric.WithDescription("Number of responses written, by status code."),
	)
	if err != nil {
		s.log.Warn("failed to create responses counter", logging.Error(err))
		responses = noop.Int64Counter{}
	}
	sent, err := meter.Int64Histogram(
		"minihttpd.server.response.size",
		metric.WithDescription("Size of responses written, headers included."),
		metric.WithUnit("By"),
	)
	if err != nil {
		s.log.Warn("failed to create response size histogram", logging.Error(err))
		sent = noop.Int64Histogram{}
	}
	s.responses = responses
	s.sent = sent
	return s
}

// Serve accepts connections on ln until ln is closed or a client sends
// zero bytes. Serve always closes ln before returning.
//
// A closed listener returns nil. A zero byte read returns a
// ZeroBytesReadError or nil depending on the ZeroReadPolicy.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	if s.workers <= 0 {
		return s.serveSequential(ctx, ln)
	}
	return s.servePool(ctx, ln)
}

func (s *Server) serveSequential(ctx context.Context, ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = s.acceptFailed(ctx, err, backoff)
			continue
		}
		backoff = 0

		err = s.handle(ctx, conn)
		var zerr ZeroBytesReadError
		if errors.As(err, &zerr) {
			return s.stopOnZeroRead(ctx, zerr)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "dropped connection", logging.Error(err))
		}
	}
}

func (s *Server) servePool(ctx context.Context, ln net.Listener) error {
	var g errgroup.Group
	g.SetLimit(s.workers)

	zeroReads := make(chan ZeroBytesReadError, 1)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			backoff = s.acceptFailed(ctx, err, backoff)
			continue
		}
		backoff = 0

		g.Go(func() error {
			err := s.handle(ctx, conn)
			var zerr ZeroBytesReadError
			if errors.As(err, &zerr) {
				select {
				case zeroReads <- zerr:
				default:
				}
				ln.Close()
				return nil
			}
			if err != nil {
				s.log.ErrorContext(ctx, "dropped connection", logging.Error(err))
			}
			return nil
		})
	}

	// handlers never return an error
	_ = g.Wait()

	select {
	case zerr := <-zeroReads:
		return s.stopOnZeroRead(ctx, zerr)
	default:
		return nil
	}
}

func (s *Server) acceptFailed(ctx context.Context, err error, backoff time.Duration) time.Duration {
	s.log.ErrorContext(ctx, "failed to accept connection", logging.Error(err))

	if backoff == 0 {
		backoff = 5 * time.Millisecond
	} else {
		backoff *= 2
	}
	if backoff > time.Second {
		backoff = time.Second
	}

	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return backoff
}

func (s *Server) stopOnZeroRead(ctx context.Context, zerr ZeroBytesReadError) error {
	if s.zeroRead == ZeroReadExit {
		s.log.WarnContext(ctx, "stopping server after zero byte read", slog.String("peer", zerr.Peer))
		return nil
	}
	return zerr
}

func peer(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) (err error) {
	defer try.Close(&err, conn)

	p := peer(conn)
	ctx, span := s.tracer.Start(
		ctx,
		"Server.handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("network.peer.address", p)),
	)
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()

	buf := make([]byte, BufferSize)
	n, err := conn.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF)) {
		return ReadError{Cause: err}
	}

	raw := buf[:n]
	if !utf8.Valid(raw) {
		return DecodeError{Peer: p}
	}
	if n == 0 {
		return ZeroBytesReadError{Peer: p}
	}
	s.log.InfoContext(ctx, "received request", logging.Peer(conn.RemoteAddr()), slog.Int("bytes", n))

	resp, err := s.handler.Handle(ctx, string(raw))
	if err != nil {
		return err
	}

	w := bufio.NewWriter(conn)
	_, err = resp.WriteTo(w)
	if err != nil {
		return WriteError{Cause: err}
	}
	err = w.Flush()
	if err != nil {
		return FlushError{Cause: err}
	}

	statusAttr := attribute.Int("http.response.status_code", int(resp.Status.Code))
	span.SetAttributes(statusAttr)
	s.responses.Add(ctx, 1, metric.WithAttributes(statusAttr))
	s.sent.Record(ctx, int64(resp.Len()), metric.WithAttributes(statusAttr))

	s.log.InfoContext(
		ctx,
		"sent response",
		logging.Peer(conn.RemoteAddr()),
		logging.Status(resp.Status.Code),
		slog.Int("bytes", resp.Len()),
	)
	return nil
}
