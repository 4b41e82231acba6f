// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/strata/config/key"
)

// EnvOption configures an Env source.
type EnvOption func(*Env)

// EnvPrefix limits the source to variables starting with prefix.
// The prefix is trimmed from the resulting keys.
func EnvPrefix(prefix string) EnvOption {
	return func(e *Env) {
		e.prefix = prefix
	}
}

// EnvNestingSeparator splits variable names on sep into nested keys,
// e.g. "EXPORT__ADDRESS" sets export.address with sep "__".
func EnvNestingSeparator(sep string) EnvOption {
	return func(e *Env) {
		e.sep = sep
	}
}

// Environ overrides where the variables are read from.
func Environ(f func() []string) EnvOption {
	return func(e *Env) {
		e.environ = f
	}
}

// Env represents a Source where its underlying values
// are extracted from environment variables. Variable names
// are lower cased so they override keys set by config files.
type Env struct {
	environ func() []string
	prefix  string
	sep     string
}

// FromEnv returns a Source which will apply its config
// from the environment variables available to the
// current process.
func FromEnv(opts ...EnvOption) Env {
	e := Env{
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Apply implements the Source interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k, ok = strings.CutPrefix(k, src.prefix)
		if !ok || k == "" {
			continue
		}
		k = strings.ToLower(k)

		var kr key.Keyer = key.Name(k)
		if src.sep != "" {
			chain := key.Split(k, src.sep)
			if len(chain) == 0 {
				continue
			}
			kr = chain
		}

		err := store.Set(kr, v)
		if err != nil {
			return err
		}
	}
	return nil
}
