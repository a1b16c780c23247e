// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package status provides the closed set of HTTP status codes the server
// is able to respond with.
package status

import (
	"fmt"
	"strconv"
)

// StatusCode pairs a numeric HTTP status code with its reason phrase.
type StatusCode struct {
	Code   uint16
	Phrase string
}

// String returns the status-phrase form, "<code> <phrase>", which is
// also used as the body of error responses.
func (s StatusCode) String() string {
	return strconv.FormatUint(uint64(s.Code), 10) + " " + s.Phrase
}

// Bytes returns the status-phrase form as UTF-8 encoded bytes.
func (s StatusCode) Bytes() []byte {
	return []byte(s.String())
}

var (
	OK             = StatusCode{Code: 200, Phrase: "OK"}
	BadRequest     = StatusCode{Code: 400, Phrase: "Bad Request"}
	Unauthorized   = StatusCode{Code: 401, Phrase: "Unauthorized"}
	NotFound       = StatusCode{Code: 404, Phrase: "Not found"}
	NotImplemented = StatusCode{Code: 501, Phrase: "Not Implemented"}
)

var registry = map[uint16]StatusCode{
	OK.Code:             OK,
	BadRequest.Code:     BadRequest,
	Unauthorized.Code:   Unauthorized,
	NotFound.Code:       NotFound,
	NotImplemented.Code: NotImplemented,
}

// Lookup returns the registered StatusCode for code.
func Lookup(code uint16) (StatusCode, bool) {
	s, ok := registry[code]
	return s, ok
}

// UnknownCodeError is the panic value of MustLookup.
type UnknownCodeError struct {
	Code uint16
}

// Error implements the [builtin.error] interface.
func (e UnknownCodeError) Error() string {
	return fmt.Sprintf("status: code is not registered: %d", e.Code)
}

// MustLookup is like Lookup but panics if code is not registered.
// Codes are always chosen by the server itself so an unknown code
// is a programming error.
func MustLookup(code uint16) StatusCode {
	s, ok := Lookup(code)
	if !ok {
		panic(UnknownCodeError{Code: code})
	}
	return s
}
