// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"log/slog"
	"net"
)

// Error returns an slog.Attr for an error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Peer returns an slog.Attr for the remote address of a connection.
func Peer(addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.String("peer", "unknown")
	}
	return slog.String("peer", addr.String())
}

// Status returns an slog.Attr for an HTTP status code.
func Status(code uint16) slog.Attr {
	return slog.Uint64("status", uint64(code))
}
