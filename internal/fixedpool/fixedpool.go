// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of tasks to completion.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/strata/internal/try"
)

// Task is a unit of work given to Wait.
type Task func(context.Context) error

// Wait runs every task on its own goroutine and returns once all of
// them have returned. The first failure cancels the context given to
// the remaining tasks. A panicking task fails with try.PanicError.
//
// All task errors are joined together.
func Wait(ctx context.Context, tasks ...Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	errs := make([]error, len(tasks))
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := run(ctx, task)
			if err != nil {
				errs[i] = err
				cancel(err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func run(ctx context.Context, t Task) (err error) {
	defer try.Recover(&err)
	return t(ctx)
}
