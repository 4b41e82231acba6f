// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fixedpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/internal/try"
)

func TestWait(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if there are no tasks", func(t *testing.T) {
			err := Wait(context.Background())
			require.NoError(t, err)
		})

		t.Run("if every task succeeds", func(t *testing.T) {
			var counter atomic.Int32
			task := func(ctx context.Context) error {
				counter.Add(1)
				return nil
			}

			err := Wait(context.Background(), task, task, task)
			require.NoError(t, err)
			require.Equal(t, int32(3), counter.Load())
		})

		t.Run("if the context is already cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var executed atomic.Bool
			err := Wait(ctx, func(ctx context.Context) error {
				executed.Store(true)
				return nil
			})
			require.NoError(t, err)
			require.True(t, executed.Load())
		})
	})

	t.Run("will run tasks concurrently", func(t *testing.T) {
		const numTasks = 5

		var started sync.WaitGroup
		started.Add(numTasks)
		release := make(chan struct{})

		tasks := make([]Task, numTasks)
		for i := range tasks {
			tasks[i] = func(ctx context.Context) error {
				started.Done()
				<-release
				return nil
			}
		}

		done := make(chan error, 1)
		go func() {
			done <- Wait(context.Background(), tasks...)
		}()

		started.Wait()
		close(release)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.FailNow(t, "tasks did not complete")
		}
	})

	t.Run("will join every task error", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")

		err := Wait(
			context.Background(),
			func(ctx context.Context) error { return err1 },
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return err2 },
		)
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("will cancel the remaining tasks", func(t *testing.T) {
		t.Run("if a task fails", func(t *testing.T) {
			taskErr := errors.New("task error")

			var cause error
			err := Wait(
				context.Background(),
				func(ctx context.Context) error { return taskErr },
				func(ctx context.Context) error {
					<-ctx.Done()
					cause = context.Cause(ctx)
					return nil
				},
			)
			require.ErrorIs(t, err, taskErr)
			require.ErrorIs(t, cause, taskErr)
		})
	})

	t.Run("will return a PanicError", func(t *testing.T) {
		t.Run("if a task panics", func(t *testing.T) {
			panicErr := errors.New("panic error")

			err := Wait(context.Background(), func(ctx context.Context) error {
				panic(panicErr)
			})

			var perr try.PanicError
			require.ErrorAs(t, err, &perr)
			require.ErrorIs(t, err, panicErr)
		})

		t.Run("if a task panics with a non-error value", func(t *testing.T) {
			err := Wait(context.Background(), func(ctx context.Context) error {
				panic("boom")
			})

			var perr try.PanicError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, "boom", perr.Value)
		})
	})
}

func ExampleWait() {
	var mu sync.Mutex
	var done []string

	err := Wait(
		context.Background(),
		func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, "release")
			return nil
		},
		func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, "post-run")
			return nil
		},
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(done))
	// Output: 2
}
