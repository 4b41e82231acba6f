// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle provides helpers for defining work to execute relative to
// a main loop, e.g. [github.com/z5labs/strata/application.Application.Run].
//
// Code running inside the loop finds the [Context] with [FromContext]
// and registers teardown work with [Context.OnPostRun].
package lifecycle

import (
	"context"
	"errors"
	"slices"
)

// Hook represents functionality that needs to be performed
// at a specific "time" relative to the execution of a main loop.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHook returns a [Hook] that's the logical concatenation
// of the provided [Hook]s. They're applied sequentially and every
// hook runs, even if an earlier one failed.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context collects the hooks of a single main loop execution.
// The zero value is ready to use.
type Context struct {
	postRuns []Hook
}

// PostRun returns the [Hook] which is meant to be executed after
// the main loop returns. The registered hooks run in reverse order
// of registration, like deferred calls.
func (c *Context) PostRun() Hook {
	hooks := slices.Clone(c.postRuns)
	slices.Reverse(hooks)
	return multiHook(hooks)
}

// OnPostRun registers hook to be executed after the main loop returns.
func (c *Context) OnPostRun(hook Hook) {
	c.postRuns = append(c.postRuns, hook)
}

type key struct{}

var contextKey = &key{}

// NewContext returns a new [context.Context] containing the lifecycle [Context].
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey, c)
}

// FromContext tries to extract a lifecycle [Context] from the given [context.Context].
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey).(*Context)
	return lc, ok
}
