// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package response assembles the bytes of an HTTP/1.1 response.
//
// Only three header lines are ever produced and always in the same order:
//
//	HTTP/1.1 <code> <phrase>\r\n
//	Content-Type: <type>/<subtype>\r\n
//	Content-Length: <n>\r\n
//	\r\n
package response

import (
	"bytes"
	"io"
	"strconv"

	"github.com/z5labs/minihttpd/mediatype"
	"github.com/z5labs/minihttpd/status"
)

// Protocol is the only protocol version the server speaks.
const Protocol = "HTTP/1.1"

const crlf = "\r\n"

type kind int

const (
	kindStatus kind = iota
	kindContentType
	kindContentLength
)

// Line is a single header line. Exactly one of its fields is meaningful,
// selected by its kind.
type Line struct {
	kind   kind
	status status.StatusCode
	ct     mediatype.ContentType
	length int
}

// StatusLine returns the response status line.
func StatusLine(s status.StatusCode) Line {
	return Line{kind: kindStatus, status: s}
}

// ContentTypeLine returns a Content-Type header line.
func ContentTypeLine(ct mediatype.ContentType) Line {
	return Line{kind: kindContentType, ct: ct}
}

// ContentLengthLine returns a Content-Length header line.
func ContentLengthLine(n int) Line {
	return Line{kind: kindContentLength, length: n}
}

// String serializes l without its line terminator.
func (l Line) String() string {
	switch l.kind {
	case kindStatus:
		return Protocol + " " + strconv.FormatUint(uint64(l.status.Code), 10) + " " + l.status.Phrase
	case kindContentType:
		return "Content-Type: " + l.ct.String()
	case kindContentLength:
		return "Content-Length: " + strconv.Itoa(l.length)
	default:
		panic("response: unknown header line kind " + strconv.Itoa(int(l.kind)))
	}
}

// Headers joins lines with CRLF and appends the blank line which ends
// the header section.
func Headers(lines ...Line) []byte {
	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteString(crlf)
		}
		buf.WriteString(l.String())
	}
	buf.WriteString(crlf + crlf)
	return buf.Bytes()
}

// Response is a fully serialized header section and its body.
type Response struct {
	// Status is the status the headers were built with.
	Status status.StatusCode

	Headers []byte
	Body    []byte
}

// Build assembles a Response. Content-Length is always taken from body
// so it must be called with the final body.
func Build(s status.StatusCode, ct mediatype.ContentType, body []byte) Response {
	return Response{
		Status: s,
		Headers: Headers(
			StatusLine(s),
			ContentTypeLine(ct),
			ContentLengthLine(len(body)),
		),
		Body: body,
	}
}

// Len returns the number of bytes r occupies on the wire.
func (r Response) Len() int {
	return len(r.Headers) + len(r.Body)
}

// WriteTo implements the [io.WriterTo] interface. The headers are
// written before the body with two separate writes.
func (r Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Headers)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(r.Body)
	return int64(n + m), err
}
