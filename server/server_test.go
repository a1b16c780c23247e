// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/minihttpd/dispatch"
	"github.com/z5labs/minihttpd/fileroot"
	"github.com/z5labs/minihttpd/mediatype"
	"github.com/z5labs/minihttpd/response"
	"github.com/z5labs/minihttpd/status"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAddr string

func (m mockAddr) Network() string { return "tcp" }
func (m mockAddr) String() string  { return string(m) }

type mockConn struct {
	r        io.Reader
	out      bytes.Buffer
	readErr  error
	writeErr error

	mu     sync.Mutex
	closed bool
}

func newMockConn(request string) *mockConn {
	return &mockConn{r: strings.NewReader(request)}
}

func (c *mockConn) Read(b []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	return c.r.Read(b)
}

func (c *mockConn) Write(b []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.out.Write(b)
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) LocalAddr() net.Addr                { return mockAddr("127.0.0.1:8080") }
func (c *mockConn) RemoteAddr() net.Addr               { return mockAddr("127.0.0.1:50000") }
func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

type acceptStep struct {
	conn net.Conn
	err  error
}

// scriptedListener hands out its steps in order and behaves like a
// closed listener once they run out.
type scriptedListener struct {
	mu     sync.Mutex
	steps  []acceptStep
	closed bool
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.steps) == 0 {
		return nil, net.ErrClosed
	}
	step := l.steps[0]
	l.steps = l.steps[1:]
	return step.conn, step.err
}

func (l *scriptedListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *scriptedListener) Addr() net.Addr {
	return mockAddr("127.0.0.1:8080")
}

func listenerOf(steps ...acceptStep) *scriptedListener {
	return &scriptedListener{steps: steps}
}

type handlerFunc func(context.Context, string) (response.Response, error)

func (f handlerFunc) Handle(ctx context.Context, raw string) (response.Response, error) {
	return f(ctx, raw)
}

func newHandler(t *testing.T, files map[string]string) Handler {
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return dispatch.New(fileroot.New(fs, fileroot.Root("/srv")))
}

const indexResponse = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 10\r\n\r\n<h1>hi</h1"

var indexFiles = map[string]string{
	"/srv/index.html": "<h1>hi</h1",
}

func TestServer_Serve(t *testing.T) {
	t.Run("will write the response and close the connection", func(t *testing.T) {
		conn := newMockConn("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
		srv := New(newHandler(t, indexFiles))

		err := srv.Serve(context.Background(), listenerOf(acceptStep{conn: conn}))
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, indexResponse, conn.out.String()) {
			return
		}
		assert.True(t, conn.isClosed())
	})

	t.Run("will only read the first 1024 bytes", func(t *testing.T) {
		// the path alone overflows the buffer so the handler only
		// sees a truncated path
		var seen string
		h := handlerFunc(func(ctx context.Context, raw string) (response.Response, error) {
			seen = raw
			return response.Build(status.NotImplemented, mediatype.TextPlain, status.NotImplemented.Bytes()), nil
		})
		conn := newMockConn("GET /" + strings.Repeat("a", 2048) + ".html HTTP/1.1")

		err := New(h).Serve(context.Background(), listenerOf(acceptStep{conn: conn}))
		if !assert.Nil(t, err) {
			return
		}
		assert.Len(t, seen, BufferSize)
	})

	t.Run("will drop the connection and keep serving", func(t *testing.T) {
		testCases := []struct {
			Name string
			Conn *mockConn
		}{
			{
				Name: "if reading the connection fails",
				Conn: &mockConn{readErr: errors.New("connection reset")},
			},
			{
				Name: "if the request is not valid UTF-8",
				Conn: newMockConn("GET /\xff\xfe.html HTTP/1.1"),
			},
			{
				Name: "if the request has no path",
				Conn: newMockConn("GET\r\n\r\n"),
			},
			{
				Name: "if the method is unsupported",
				Conn: newMockConn("HEAD /index.html HTTP/1.1\r\n\r\n"),
			},
			{
				Name: "if writing the response fails",
				Conn: &mockConn{r: strings.NewReader("GET /index.html HTTP/1.1"), writeErr: errors.New("broken pipe")},
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				next := newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
				srv := New(newHandler(t, indexFiles))

				err := srv.Serve(context.Background(), listenerOf(
					acceptStep{conn: testCase.Conn},
					acceptStep{conn: next},
				))
				if !assert.Nil(t, err) {
					return
				}
				if !assert.Empty(t, testCase.Conn.out.String()) {
					return
				}
				if !assert.True(t, testCase.Conn.isClosed()) {
					return
				}
				assert.Equal(t, indexResponse, next.out.String())
			})
		}
	})

	t.Run("will keep accepting", func(t *testing.T) {
		t.Run("if accepting a connection fails", func(t *testing.T) {
			conn := newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
			srv := New(newHandler(t, indexFiles))

			err := srv.Serve(context.Background(), listenerOf(
				acceptStep{err: errors.New("too many open files")},
				acceptStep{conn: conn},
			))
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, indexResponse, conn.out.String())
		})
	})

	t.Run("will return a ZeroBytesReadError", func(t *testing.T) {
		t.Run("if a client sends nothing", func(t *testing.T) {
			before := newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
			empty := newMockConn("")
			after := newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
			srv := New(newHandler(t, indexFiles))

			err := srv.Serve(context.Background(), listenerOf(
				acceptStep{conn: before},
				acceptStep{conn: empty},
				acceptStep{conn: after},
			))

			var zerr ZeroBytesReadError
			if !assert.ErrorAs(t, err, &zerr) {
				return
			}
			if !assert.Equal(t, "127.0.0.1:50000", zerr.Peer) {
				return
			}
			if !assert.Equal(t, indexResponse, before.out.String()) {
				return
			}
			assert.Empty(t, after.out.String())
		})
	})

	t.Run("will return nil", func(t *testing.T) {
		t.Run("if a client sends nothing and the policy is exit", func(t *testing.T) {
			empty := newMockConn("")
			after := newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
			srv := New(newHandler(t, indexFiles), OnZeroRead(ZeroReadExit))

			err := srv.Serve(context.Background(), listenerOf(
				acceptStep{conn: empty},
				acceptStep{conn: after},
			))
			if !assert.Nil(t, err) {
				return
			}
			assert.Empty(t, after.out.String())
		})

		t.Run("if the listener is closed", func(t *testing.T) {
			srv := New(newHandler(t, indexFiles))

			err := srv.Serve(context.Background(), listenerOf())
			assert.Nil(t, err)
		})
	})

	t.Run("will close the listener", func(t *testing.T) {
		t.Run("if it returns", func(t *testing.T) {
			ln := listenerOf(acceptStep{conn: newMockConn("")})
			srv := New(newHandler(t, indexFiles), OnZeroRead(ZeroReadExit))

			err := srv.Serve(context.Background(), ln)
			if !assert.Nil(t, err) {
				return
			}
			assert.True(t, ln.closed)
		})
	})
}

func TestServer_Serve_Workers(t *testing.T) {
	t.Run("will answer every connection", func(t *testing.T) {
		conns := make([]*mockConn, 10)
		steps := make([]acceptStep, len(conns))
		for i := range conns {
			conns[i] = newMockConn("GET /index.html HTTP/1.1\r\n\r\n")
			steps[i] = acceptStep{conn: conns[i]}
		}
		srv := New(newHandler(t, indexFiles), Workers(3))

		err := srv.Serve(context.Background(), listenerOf(steps...))
		if !assert.Nil(t, err) {
			return
		}
		for _, conn := range conns {
			if !assert.Equal(t, indexResponse, conn.out.String()) {
				return
			}
		}
	})

	t.Run("will stop accepting", func(t *testing.T) {
		t.Run("if a client sends nothing", func(t *testing.T) {
			srv := New(newHandler(t, indexFiles), Workers(2))

			err := srv.Serve(context.Background(), listenerOf(
				acceptStep{conn: newMockConn("")},
			))

			var zerr ZeroBytesReadError
			assert.ErrorAs(t, err, &zerr)
		})

		t.Run("if a client sends nothing and the policy is exit", func(t *testing.T) {
			srv := New(newHandler(t, indexFiles), Workers(2), OnZeroRead(ZeroReadExit))

			err := srv.Serve(context.Background(), listenerOf(
				acceptStep{conn: newMockConn("")},
			))
			assert.Nil(t, err)
		})
	})
}

func TestServer_Serve_TCP(t *testing.T) {
	t.Run("will serve a real client", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if !assert.Nil(t, err) {
			return
		}

		srv := New(newHandler(t, indexFiles))
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(context.Background(), ln)
		}()

		conn, err := net.Dial("tcp", ln.Addr().String())
		if !assert.Nil(t, err) {
			return
		}
		_, err = conn.Write([]byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n"))
		if !assert.Nil(t, err) {
			return
		}

		b, err := io.ReadAll(conn)
		conn.Close()
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, indexResponse, string(b)) {
			return
		}

		// an empty connection stops the loop
		empty, err := net.Dial("tcp", ln.Addr().String())
		if !assert.Nil(t, err) {
			return
		}
		empty.Close()

		select {
		case err := <-errCh:
			var zerr ZeroBytesReadError
			assert.ErrorAs(t, err, &zerr)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop after a zero byte read")
		}
	})
}
