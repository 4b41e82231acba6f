// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
)

// RenderTextTemplateOption represents options for configuring the TextTemplateRenderer.
type RenderTextTemplateOption func(*TextTemplateRenderer)

// TemplateFunc registers the given function, f, for use in the config
// template via the given name. It replaces a builtin function of the
// same name.
func TemplateFunc(name string, f any) RenderTextTemplateOption {
	return func(ttr *TextTemplateRenderer) {
		ttr.funcs[name] = f
	}
}

// TemplateDelims sets the action delimiters to the specified strings.
// An empty delimiter stands for the corresponding default: {{ or }}.
func TemplateDelims(left, right string) RenderTextTemplateOption {
	return func(ttr *TextTemplateRenderer) {
		ttr.leftDelim = left
		ttr.rightDelim = right
	}
}

// TemplateEnv sets the lookup used by the env template function.
// It defaults to os.Getenv.
func TemplateEnv(getenv func(string) string) RenderTextTemplateOption {
	return func(ttr *TextTemplateRenderer) {
		ttr.getenv = getenv
	}
}

// TextTemplateRenderer is an io.Reader that renders a text/template read
// from another io.Reader. The template is rendered on the first Read.
//
// Besides functions registered with TemplateFunc, templates may use
//
//	{{ env "NAME" }}               the value of an environment variable
//	{{ env "NAME" | default "x" }} "x" if the value is empty
type TextTemplateRenderer struct {
	r io.Reader

	leftDelim  string
	rightDelim string
	funcs      template.FuncMap
	getenv     func(string) string

	renderOnce sync.Once
	renderErr  error
	buf        bytes.Buffer
}

// RenderTextTemplate configures a TextTemplateRenderer.
func RenderTextTemplate(r io.Reader, opts ...RenderTextTemplateOption) *TextTemplateRenderer {
	ttr := &TextTemplateRenderer{
		r:      r,
		funcs:  make(template.FuncMap),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(ttr)
	}
	return ttr
}

// TextTemplateParseError occurs when the config template fails to be parsed.
type TextTemplateParseError struct {
	Cause error
}

// Error implements the error interface.
func (e TextTemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e TextTemplateParseError) Unwrap() error {
	return e.Cause
}

// TextTemplateExecError occurs when a template fails to execute, most
// likely because a template function failed.
type TextTemplateExecError struct {
	Cause error
}

// Error implements the error interface.
func (e TextTemplateExecError) Error() string {
	return fmt.Sprintf("failed to exec config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e TextTemplateExecError) Unwrap() error {
	return e.Cause
}

func (ttr *TextTemplateRenderer) builtins() template.FuncMap {
	return template.FuncMap{
		"env": ttr.getenv,
		"default": func(def, s string) string {
			if s == "" {
				return def
			}
			return s
		},
	}
}

func (ttr *TextTemplateRenderer) render() error {
	text, err := io.ReadAll(ttr.r)
	if c, ok := ttr.r.(io.Closer); ok {
		// the template was read, a failing Close changes nothing
		_ = c.Close()
	}
	if err != nil {
		return err
	}

	funcs := ttr.builtins()
	for name, f := range ttr.funcs {
		funcs[name] = f
	}

	tmpl, err := template.New("config").
		Delims(ttr.leftDelim, ttr.rightDelim).
		Funcs(funcs).
		Parse(string(text))
	if err != nil {
		return TextTemplateParseError{Cause: err}
	}

	err = tmpl.Execute(&ttr.buf, struct{}{})
	if err != nil {
		return TextTemplateExecError{Cause: err}
	}
	return nil
}

// Read implements the io.Reader interface.
func (ttr *TextTemplateRenderer) Read(b []byte) (int, error) {
	ttr.renderOnce.Do(func() {
		ttr.renderErr = ttr.render()
	})
	if ttr.renderErr != nil {
		return 0, ttr.renderErr
	}
	return ttr.buf.Read(b)
}
