// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/z5labs/strata/internal/try"

	"gopkg.in/yaml.v3"
)

// decoded applies the document read from r after decoding it with
// unmarshal. A decode failure is wrapped by invalid.
func decoded(store Store, r io.Reader, unmarshal func([]byte, any) error, invalid func(error) error) (err error) {
	c, _ := r.(io.Closer)
	defer try.Close(&err, c)

	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}

	m := make(map[string]any)
	err = unmarshal(b, &m)
	if err != nil {
		return invalid(err)
	}
	return Map(m).Apply(store)
}

// Yaml represents a Source where its underlying format is YAML.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a source which will apply its config
// from YAML values parsed from the given io.Reader.
// r is closed after reading if it is an io.Closer.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError occurs if the underlying io.Reader contains invalid YAML.
type InvalidYamlError struct {
	cause error
}

// Error implements the error interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidYamlError) Unwrap() error {
	return e.cause
}

// Apply implements the Source interface.
func (src Yaml) Apply(store Store) error {
	return decoded(store, src.r, yaml.Unmarshal, func(err error) error {
		return InvalidYamlError{cause: err}
	})
}

// Json represents a Source where its underlying format is JSON.
type Json struct {
	r io.Reader
}

// FromJson returns a source which will apply its config
// from JSON values parsed from the given io.Reader.
// r is closed after reading if it is an io.Closer.
func FromJson(r io.Reader) Json {
	return Json{r: r}
}

// InvalidJsonError occurs if the underlying io.Reader contains invalid JSON.
type InvalidJsonError struct {
	cause error
}

// Error implements the error interface.
func (e InvalidJsonError) Error() string {
	return fmt.Sprintf("invalid json: %s", e.cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidJsonError) Unwrap() error {
	return e.cause
}

// Apply implements the Source interface.
func (src Json) Apply(store Store) error {
	return decoded(store, src.r, json.Unmarshal, func(err error) error {
		return InvalidJsonError{cause: err}
	})
}
