// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultAddress = "0.0.0.0"
	DefaultPort    = 8080
)

// ZeroReadPolicy decides what happens to the accept loop when a client
// connects and sends nothing. Either way the loop stops.
type ZeroReadPolicy int

const (
	// ZeroReadFail makes Serve return a ZeroBytesReadError.
	ZeroReadFail ZeroReadPolicy = iota

	// ZeroReadExit makes Serve return nil.
	ZeroReadExit
)

// String implements the [fmt.Stringer] interface.
func (p ZeroReadPolicy) String() string {
	switch p {
	case ZeroReadFail:
		return "fail"
	case ZeroReadExit:
		return "exit"
	default:
		return "ZeroReadPolicy(" + strconv.Itoa(int(p)) + ")"
	}
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (p *ZeroReadPolicy) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "fail":
		*p = ZeroReadFail
	case "exit":
		*p = ZeroReadExit
	default:
		return fmt.Errorf("unknown zero read policy: %q", b)
	}
	return nil
}

// Config is the server section of the config.
type Config struct {
	Address string `config:"address"`
	Port    int    `config:"port"`

	// Root is prefixed onto every request path.
	Root string `config:"root"`

	// Workers bounds how many connections are handled at once. Zero
	// handles connections one at a time, in accept order.
	Workers int `config:"workers"`

	ZeroRead ZeroReadPolicy `config:"zeroRead"`
}

// Addr returns the host:port the server binds to, filling in defaults.
func (cfg Config) Addr() string {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}
