// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"fmt"
	"strings"

	"github.com/z5labs/minihttpd/mediatype"
)

// Request is the part of a request line the server cares about.
type Request struct {
	Method    string
	RawPath   string
	Extension string
}

// InvalidRequestError is returned when a request does not carry both a
// method and a path.
type InvalidRequestError struct {
	Request string
}

// Error implements the [builtin.error] interface.
func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %q", e.Request)
}

// Parse splits raw on whitespace. The first field is the method and the
// second is the path. Everything after that, including the protocol
// version and any headers, is ignored.
func Parse(raw string) (Request, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return Request{}, InvalidRequestError{Request: raw}
	}

	req := Request{
		Method:    fields[0],
		RawPath:   fields[1],
		Extension: Extension(fields[1]),
	}
	return req, nil
}

// Extension returns the text after the last "." in path or
// [mediatype.DefaultExtension] if path has no ".".
func Extension(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return mediatype.DefaultExtension
	}
	return path[i+1:]
}
