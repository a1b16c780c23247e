// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"sync"
)

// FileReader is an io.Reader that handles opening a file for reading automatically.
type FileReader struct {
	path     string
	optional bool

	openOnce sync.Once
	openErr  error
	fs       fs.FS
	file     io.ReadCloser
}

// FileReaderOption configures a FileReader.
type FileReaderOption func(*FileReader)

// Optional makes a missing file read as empty instead of failing.
func Optional() FileReaderOption {
	return func(r *FileReader) {
		r.optional = true
	}
}

// NewFileReader configures a FileReader.
func NewFileReader(fs fs.FS, path string, opts ...FileReaderOption) *FileReader {
	r := &FileReader{
		path: path,
		fs:   fs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read implements the io.Reader interface.
func (r *FileReader) Read(b []byte) (int, error) {
	r.openOnce.Do(func() {
		r.file, r.openErr = r.fs.Open(r.path)
	})
	if r.optional && errors.Is(r.openErr, fs.ErrNotExist) {
		return 0, io.EOF
	}
	if r.openErr != nil {
		return 0, r.openErr
	}
	return r.file.Read(b)
}

// Close implements the io.Closer interface.
func (r *FileReader) Close() error {
	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil
	return err
}
