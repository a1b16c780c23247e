// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/z5labs/minihttpd/internal/fixedpool"
)

// BindError is returned when the listener can not be created.
type BindError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to bind tcp listener to %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// Runtime binds a listener and runs a Server on it.
type Runtime struct {
	addr string
	srv  *Server
	log  *slog.Logger

	listen func(network, addr string) (net.Listener, error)
}

// NewRuntime returns a Runtime which serves srv on addr.
func NewRuntime(addr string, srv *Server) *Runtime {
	return &Runtime{
		addr:   addr,
		srv:    srv,
		log:    srv.log,
		listen: net.Listen,
	}
}

// Run binds the listener and serves until ctx is cancelled or the
// Server stops on its own. Cancelling ctx closes the listener, which
// lets the connection being handled finish.
func (rt *Runtime) Run(ctx context.Context) error {
	ln, err := rt.listen("tcp", rt.addr)
	if err != nil {
		return BindError{Addr: rt.addr, Cause: err}
	}
	rt.log.InfoContext(ctx, "HTTP server online, open for connections", slog.String("addr", ln.Addr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return fixedpool.Wait(
		ctx,
		func(ctx context.Context) error {
			defer cancel()
			return rt.srv.Serve(ctx, ln)
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			rt.log.InfoContext(ctx, "closing listener")
			ln.Close()
			return nil
		},
	)
}
