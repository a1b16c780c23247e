// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/z5labs/minihttpd/fileroot"
	"github.com/z5labs/minihttpd/response"
	"github.com/z5labs/minihttpd/status"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, files map[string]string) *Dispatcher {
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return New(fileroot.New(fs, fileroot.Root("/srv")))
}

func wire(resp response.Response) string {
	return string(resp.Headers) + string(resp.Body)
}

type resolverFunc func(string) (afero.File, error)

func (f resolverFunc) Resolve(path string) (afero.File, error) {
	return f(path)
}

func TestDispatcher_Handle(t *testing.T) {
	t.Run("will respond with 200 and the file contents", func(t *testing.T) {
		t.Run("if the file exists and its extension is supported", func(t *testing.T) {
			d := newDispatcher(t, map[string]string{
				"/srv/index.html": "<h1>hi</h1",
			})

			resp, err := d.Handle(context.Background(), "GET /index.html HTTP/1.1")
			if !assert.Nil(t, err) {
				return
			}

			expect := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 10\r\n\r\n"
			if !assert.Equal(t, expect, string(resp.Headers)) {
				return
			}
			assert.Equal(t, "<h1>hi</h1", string(resp.Body))
		})

		t.Run("if the file is binary", func(t *testing.T) {
			png := string([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0xff})
			d := newDispatcher(t, map[string]string{"/srv/logo.png": png})

			resp, err := d.Handle(context.Background(), "GET /logo.png HTTP/1.1")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: image/png\r\nContent-Length: 10\r\n\r\n", string(resp.Headers)) {
				return
			}
			assert.Equal(t, []byte(png), resp.Body)
		})

		t.Run("if the path has no extension", func(t *testing.T) {
			d := newDispatcher(t, map[string]string{"/srv/LICENSE": "MIT"})

			resp, err := d.Handle(context.Background(), "GET /LICENSE HTTP/1.1")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nMIT", wire(resp))
		})
	})

	t.Run("will respond with 404 as plain text", func(t *testing.T) {
		for _, path := range []string{"/missing.css", "/missing.html", "/missing.png", "/missing"} {
			t.Run("if "+path+" does not exist", func(t *testing.T) {
				d := newDispatcher(t, nil)

				resp, err := d.Handle(context.Background(), "GET "+path+" HTTP/1.1")
				if !assert.Nil(t, err) {
					return
				}
				assert.Equal(t, "HTTP/1.1 404 Not found\r\nContent-Type: text/plain\r\nContent-Length: 13\r\n\r\n404 Not found", wire(resp))
			})
		}
	})

	t.Run("will respond with 504", func(t *testing.T) {
		t.Run("if the path contains ..", func(t *testing.T) {
			d := newDispatcher(t, map[string]string{"/secret.txt": "shh"})

			resp, err := d.Handle(context.Background(), "GET /../secret.txt")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "HTTP/1.1 504 Unauthorized\r\nContent-Type: text/plain\r\nContent-Length: 16\r\n\r\n504 Unauthorized", wire(resp))
		})

		t.Run("if a real file would resolve despite the ..", func(t *testing.T) {
			d := newDispatcher(t, map[string]string{"/srv/a/../b.txt": "b", "/srv/b.txt": "b"})

			resp, err := d.Handle(context.Background(), "GET /a/../b.txt")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, "504 Unauthorized", string(resp.Body))
		})
	})

	t.Run("will respond with 400", func(t *testing.T) {
		testCases := []struct {
			Name  string
			Files map[string]string
			Raw   string
		}{
			{
				Name:  "if the extension is unsupported and the file exists",
				Files: map[string]string{"/srv/app.js": "alert(1)"},
				Raw:   "GET /app.js HTTP/1.1",
			},
			{
				Name: "if the extension is unsupported and the file is missing",
				Raw:  "GET /app.js HTTP/1.1",
			},
			{
				Name: "if the extension is unsupported and the path is unauthorized",
				Raw:  "GET /../app.js HTTP/1.1",
			},
			{
				Name:  "if the extension differs only by case",
				Files: map[string]string{"/srv/INDEX.HTML": "<p></p>"},
				Raw:   "GET /INDEX.HTML HTTP/1.1",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				d := newDispatcher(t, testCase.Files)

				resp, err := d.Handle(context.Background(), testCase.Raw)
				if !assert.Nil(t, err) {
					return
				}
				assert.Equal(t, "HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain\r\nContent-Length: 15\r\n\r\n400 Bad Request", wire(resp))
			})
		}
	})

	t.Run("will respond with 501", func(t *testing.T) {
		for _, method := range []string{"POST", "PATCH", "PUT", "DELETE"} {
			t.Run("if the method is "+method, func(t *testing.T) {
				d := newDispatcher(t, map[string]string{"/srv/index.html": "<p></p>"})

				for _, path := range []string{"/index.html", "/../x.js", "/nope"} {
					resp, err := d.Handle(context.Background(), method+" "+path+" HTTP/1.1")
					if !assert.Nil(t, err) {
						return
					}
					if !assert.Equal(t, "HTTP/1.1 501 Not Implemented\r\nContent-Type: text/plain\r\nContent-Length: 19\r\n\r\n501 Not Implemented", wire(resp)) {
						return
					}
				}
			})
		}
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the request is invalid", func(t *testing.T) {
			d := newDispatcher(t, nil)

			_, err := d.Handle(context.Background(), "GET")

			var ierr InvalidRequestError
			assert.ErrorAs(t, err, &ierr)
		})

		t.Run("if the method is not supported", func(t *testing.T) {
			d := newDispatcher(t, nil)

			for _, method := range []string{"HEAD", "OPTIONS", "get", "TRACE"} {
				_, err := d.Handle(context.Background(), method+" /index.html HTTP/1.1")

				var uerr UnsupportedRequestTypeError
				if !assert.ErrorAs(t, err, &uerr) {
					return
				}
				if !assert.Equal(t, method, uerr.Method) {
					return
				}
			}
		})

		t.Run("if the resolved file can not be read", func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/srv/index.html", []byte("<p></p>"), 0o644))

			d := New(resolverFunc(func(path string) (afero.File, error) {
				f, err := fs.Open("/srv" + path)
				if err != nil {
					return nil, err
				}
				f.Close()
				return f, nil
			}))

			_, err := d.Handle(context.Background(), "GET /index.html HTTP/1.1")

			var ferr FileReadError
			if !assert.ErrorAs(t, err, &ferr) {
				return
			}
			assert.Equal(t, "/index.html", ferr.Path)
		})

		t.Run("if the resolver fails for any other reason", func(t *testing.T) {
			resolveErr := errors.New("permission denied")
			d := New(resolverFunc(func(string) (afero.File, error) {
				return nil, resolveErr
			}))

			_, err := d.Handle(context.Background(), "GET /index.html HTTP/1.1")
			assert.ErrorIs(t, err, resolveErr)
		})
	})
}

func TestStatusFor(t *testing.T) {
	t.Run("will return the traversal answer", func(t *testing.T) {
		t.Run("if the code is 504", func(t *testing.T) {
			assert.Equal(t, UnauthorizedPath, statusFor(504))
		})
	})

	t.Run("will return the registered status", func(t *testing.T) {
		t.Run("if the code is registered", func(t *testing.T) {
			assert.Equal(t, status.NotFound, statusFor(404))
		})
	})

	t.Run("will panic with UnknownCodeError", func(t *testing.T) {
		t.Run("if the code is not registered", func(t *testing.T) {
			assert.PanicsWithValue(t, status.UnknownCodeError{Code: 302}, func() {
				statusFor(302)
			})
		})
	})
}
