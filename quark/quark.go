// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package quark provides process wide string interning.
//
// A [Quark] is a small integer which uniquely identifies a string for the
// lifetime of the process. The zero Quark never identifies a string and is
// used to mean "no detail" by the signal engine.
package quark

import "sync"

// Quark is an interned string identifier.
type Quark uint32

var (
	mu      sync.RWMutex
	byName  = map[string]Quark{}
	strings = []string{""}
)

// FromString returns the Quark for s, interning it if it has not been
// seen before. The empty string always maps to 0.
func FromString(s string) Quark {
	if s == "" {
		return 0
	}

	mu.RLock()
	q, ok := byName[s]
	mu.RUnlock()
	if ok {
		return q
	}

	mu.Lock()
	defer mu.Unlock()
	if q, ok := byName[s]; ok {
		return q
	}
	q = Quark(len(strings))
	strings = append(strings, s)
	byName[s] = q
	return q
}

// TryString returns the Quark for s without interning it.
// If s has never been interned 0 is returned.
func TryString(s string) Quark {
	if s == "" {
		return 0
	}
	mu.RLock()
	defer mu.RUnlock()
	return byName[s]
}

// String returns the string identified by q. Unknown quarks
// map to the empty string.
func (q Quark) String() string {
	mu.RLock()
	defer mu.RUnlock()
	if int(q) >= len(strings) {
		return ""
	}
	return strings[q]
}
