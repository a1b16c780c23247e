// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package dispatch turns a raw request into a response.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/z5labs/minihttpd/fileroot"
	"github.com/z5labs/minihttpd/internal/try"
	"github.com/z5labs/minihttpd/mediatype"
	"github.com/z5labs/minihttpd/response"
	"github.com/z5labs/minihttpd/status"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/z5labs/minihttpd/dispatch"

// UnauthorizedPath is what a traversal attempt is answered with. The
// code is 504 and it reuses the Unauthorized phrase. 504 is not part of
// the status registry.
var UnauthorizedPath = status.StatusCode{
	Code:   504,
	Phrase: status.Unauthorized.Phrase,
}

// Resolver resolves request paths to open files.
type Resolver interface {
	Resolve(requestPath string) (afero.File, error)
}

// UnsupportedRequestTypeError is returned for any method other than
// GET, POST, PATCH, PUT or DELETE.
type UnsupportedRequestTypeError struct {
	Method string
}

// Error implements the [builtin.error] interface.
func (e UnsupportedRequestTypeError) Error() string {
	return fmt.Sprintf("unsupported request type: %s", e.Method)
}

// FileReadError is returned when a resolved file can't be read.
type FileReadError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e FileReadError) Error() string {
	return fmt.Sprintf("failed to read file: %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e FileReadError) Unwrap() error {
	return e.Cause
}

// Dispatcher routes requests by method.
type Dispatcher struct {
	resolver Resolver
}

// New returns a Dispatcher which serves GET requests through r.
func New(r Resolver) *Dispatcher {
	return &Dispatcher{resolver: r}
}

// Handle parses raw and produces its response.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (_ response.Response, err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "Dispatcher.Handle")
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()

	req, err := Parse(raw)
	if err != nil {
		return response.Response{}, err
	}
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.RawPath),
	)

	return d.Route(req)
}

// Route produces the response for an already parsed request.
func (d *Dispatcher) Route(req Request) (response.Response, error) {
	switch req.Method {
	case "GET":
		return d.get(req)
	case "POST", "PATCH", "PUT", "DELETE":
		return notImplemented(), nil
	default:
		return response.Response{}, UnsupportedRequestTypeError{Method: req.Method}
	}
}

func (d *Dispatcher) get(req Request) (response.Response, error) {
	code, body, err := d.load(req.RawPath)
	if err != nil {
		return response.Response{}, err
	}

	// The requested extension decides the content type, and an unknown
	// one turns any outcome into a Bad Request.
	ct, ok := mediatype.Lookup(req.Extension)
	switch {
	case !ok:
		ct = mediatype.TextPlain
		code = status.BadRequest.Code
		body = nil
	case code == status.NotFound.Code:
		ct = mediatype.TextPlain
	}

	s := statusFor(code)
	if body == nil {
		body = s.Bytes()
	}
	return response.Build(s, ct, body), nil
}

// statusFor maps a code chosen by the dispatcher onto its StatusCode.
// Every code except the traversal answer must be registered.
func statusFor(code uint16) status.StatusCode {
	if code == UnauthorizedPath.Code {
		return UnauthorizedPath
	}
	return status.MustLookup(code)
}

// load returns the code to answer with and, on success, the file contents.
// A nil body means the status phrase is the body.
func (d *Dispatcher) load(path string) (uint16, []byte, error) {
	f, err := d.resolver.Resolve(path)

	var nerr fileroot.ResourceNotFoundError
	if errors.As(err, &nerr) {
		return status.NotFound.Code, nil, nil
	}

	var uerr fileroot.UnauthorizedPathError
	if errors.As(err, &uerr) {
		return UnauthorizedPath.Code, nil, nil
	}
	if err != nil {
		return 0, nil, FileReadError{Path: path, Cause: err}
	}

	b, err := readAll(f)
	if err != nil {
		return 0, nil, FileReadError{Path: path, Cause: err}
	}
	if b == nil {
		b = []byte{}
	}
	return status.OK.Code, b, nil
}

func readAll(f afero.File) (_ []byte, err error) {
	defer try.Close(&err, f)
	return io.ReadAll(f)
}

func notImplemented() response.Response {
	s := statusFor(status.NotImplemented.Code)
	return response.Build(s, mediatype.TextPlain, s.Bytes())
}
