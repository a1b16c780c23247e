// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fileroot maps request paths onto files below a served root.
package fileroot

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// DefaultRoot is the current working directory.
const DefaultRoot = "."

// UnauthorizedPathError is returned for any request path which contains "..".
type UnauthorizedPathError struct {
	Path string
}

// Error implements the [builtin.error] interface.
func (e UnauthorizedPathError) Error() string {
	return fmt.Sprintf("requester attempted to access path outside authorized root: %s", e.Path)
}

// ResourceNotFoundError is returned when nothing exists at the resolved path.
type ResourceNotFoundError struct {
	Path string
}

// Error implements the [builtin.error] interface.
func (e ResourceNotFoundError) Error() string {
	return fmt.Sprintf("server could not locate resource at: %s", e.Path)
}

// FileOpenError is returned when the resolved path exists but can't be opened.
type FileOpenError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e FileOpenError) Error() string {
	return fmt.Sprintf("failed to open file: %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e FileOpenError) Unwrap() error {
	return e.Cause
}

// Option configures a Resolver.
type Option func(*Resolver)

// Root sets the directory which is prefixed onto every request path.
// An empty root leaves the DefaultRoot in place.
func Root(root string) Option {
	return func(r *Resolver) {
		if root == "" {
			return
		}
		r.root = root
	}
}

// Resolver resolves request paths to files.
type Resolver struct {
	fs   afero.Fs
	root string
}

// New returns a Resolver over the given file system.
func New(fs afero.Fs, opts ...Option) *Resolver {
	r := &Resolver{
		fs:   fs,
		root: DefaultRoot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the configured root.
func (r *Resolver) Root() string {
	return r.root
}

// Path returns the file system path for requestPath. It is a plain
// concatenation of the root and requestPath.
func (r *Resolver) Path(requestPath string) string {
	return r.root + requestPath
}

// Resolve opens the file which requestPath maps to.
//
// Any requestPath containing ".." is rejected before the file system is
// touched, even when the name is otherwise legitimate.
func (r *Resolver) Resolve(requestPath string) (afero.File, error) {
	if strings.Contains(requestPath, "..") {
		return nil, UnauthorizedPathError{Path: requestPath}
	}

	p := r.Path(requestPath)
	exists, err := afero.Exists(r.fs, p)
	if err != nil {
		return nil, FileOpenError{Path: p, Cause: err}
	}
	if !exists {
		return nil, ResourceNotFoundError{Path: p}
	}

	f, err := r.fs.Open(p)
	if err != nil {
		return nil, FileOpenError{Path: p, Cause: err}
	}
	return f, nil
}
