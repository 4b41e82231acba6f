// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package key names locations in a config Store.
package key

import (
	"strings"
)

// Keyer is implemented by anything which can address a config value.
type Keyer interface {
	Key() string
}

// Chain addresses a nested value, outermost key first.
type Chain []Keyer

// Key implements the Keyer interface. Elements are joined with ".".
func (k Chain) Key() string {
	ss := make([]string, len(k))
	for i := range len(k) {
		ss[i] = k[i].Key()
	}
	return strings.Join(ss, ".")
}

// Name addresses a single top level value.
type Name string

// Key implements the Keyer interface.
func (k Name) Key() string {
	return string(k)
}

// Split builds a Chain from s by splitting it on sep. Empty
// elements are dropped.
func Split(s, sep string) Chain {
	parts := strings.Split(s, sep)
	chain := make(Chain, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		chain = append(chain, Name(part))
	}
	return chain
}
