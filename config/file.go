// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"sync"
)

// FileReader is an io.Reader that opens its file on the first Read.
type FileReader struct {
	fs       fs.FS
	path     string
	optional bool

	openOnce sync.Once
	file     fs.File
	openErr  error
}

// NewFileReader configures a FileReader.
func NewFileReader(fsys fs.FS, path string) *FileReader {
	return &FileReader{
		fs:   fsys,
		path: path,
	}
}

// Read implements the io.Reader interface. An optional file which
// does not exist reads as empty.
func (r *FileReader) Read(b []byte) (int, error) {
	r.openOnce.Do(func() {
		r.file, r.openErr = r.fs.Open(r.path)
		if r.optional && errors.Is(r.openErr, fs.ErrNotExist) {
			r.openErr = io.EOF
		}
	})
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

// FileOption configures the Source returned by FromFile.
type FileOption func(*fileOptions)

type fileOptions struct {
	optional bool
	render   bool
	tmplOpts []RenderTextTemplateOption
}

// Optional makes a missing file apply no values instead of failing.
func Optional() FileOption {
	return func(o *fileOptions) {
		o.optional = true
	}
}

// Template renders the file as a text/template before decoding it.
func Template(opts ...RenderTextTemplateOption) FileOption {
	return func(o *fileOptions) {
		o.render = true
		o.tmplOpts = append(o.tmplOpts, opts...)
	}
}

// FromFile returns a Source reading name from fsys. Files ending in
// ".json" are decoded as JSON, every other file as YAML.
func FromFile(fsys fs.FS, name string, opts ...FileOption) Source {
	o := &fileOptions{}
	for _, opt := range opts {
		opt(o)
	}

	fr := NewFileReader(fsys, name)
	fr.optional = o.optional

	var r io.Reader = fr
	if o.render {
		r = RenderTextTemplate(fr, o.tmplOpts...)
	}

	if path.Ext(name) == ".json" {
		return FromJson(r)
	}
	return FromYaml(r)
}
