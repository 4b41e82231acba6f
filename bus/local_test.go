// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/variant"
)

type recordingActivator struct {
	calls        []string
	platformData []variant.Variant
	status       int
}

func (a *recordingActivator) Activate(_ context.Context, platformData variant.Variant) {
	a.calls = append(a.calls, "activate")
	a.platformData = append(a.platformData, platformData)
}

func (a *recordingActivator) Open(_ context.Context, files []string, hint string, platformData variant.Variant) {
	a.calls = append(a.calls, "open:"+hint)
	a.calls = append(a.calls, files...)
	a.platformData = append(a.platformData, platformData)
}

func (a *recordingActivator) CommandLine(_ context.Context, args []string, platformData variant.Variant) int {
	a.calls = append(a.calls, "command-line")
	a.calls = append(a.calls, args...)
	a.platformData = append(a.platformData, platformData)
	return a.status
}

func cwd(dir string) variant.Variant {
	return variant.NewVardict(map[string]variant.Variant{
		"cwd": variant.NewString(dir),
	})
}

func TestLocal_Claim(t *testing.T) {
	const appID = "org.example.Editor"

	t.Run("will make the first claim primary", func(t *testing.T) {
		b := NewLocal()

		reg, err := b.Claim(context.Background(), appID, Target{})
		require.NoError(t, err)
		require.False(t, reg.IsRemote())
		require.Nil(t, reg.Remote())
	})

	t.Run("will forward requests of later claims to the primary", func(t *testing.T) {
		b := NewLocal()
		primary := &recordingActivator{status: 3}

		_, err := b.Claim(context.Background(), appID, Target{Activator: primary})
		require.NoError(t, err)

		reg, err := b.Claim(context.Background(), appID, Target{Activator: &recordingActivator{}})
		require.NoError(t, err)
		require.True(t, reg.IsRemote())

		r := reg.Remote()
		require.NoError(t, r.Activate(context.Background(), cwd("/a")))
		require.NoError(t, r.Open(context.Background(), []string{"x.txt"}, "edit", cwd("/b")))
		status, err := r.CommandLine(context.Background(), []string{"editor", "-n"}, cwd("/c"))
		require.NoError(t, err)
		require.Equal(t, 3, status)

		require.Equal(t, []string{"activate", "open:edit", "x.txt", "command-line", "editor", "-n"}, primary.calls)
		require.Len(t, primary.platformData, 3)
		require.True(t, primary.platformData[1].Equal(cwd("/b")))
	})

	t.Run("will forward action activations with platform data", func(t *testing.T) {
		var seen []string
		g := action.NewExportedGroup(action.PlatformHooks{
			BeforeEmit: func(platformData variant.Variant) {
				dir, _ := platformData.Lookup("cwd")
				seen = append(seen, dir.Str())
			},
		})
		defer g.Unref()
		action.AddEntries(g, []action.Entry{
			{
				Name: "quit",
				Activate: func(*action.Simple, variant.Variant, any) {
					seen = append(seen, "quit")
				},
			},
		}, nil)

		b := NewLocal()
		_, err := b.Claim(context.Background(), appID, Target{Actions: g})
		require.NoError(t, err)

		reg, err := b.Claim(context.Background(), appID, Target{})
		require.NoError(t, err)

		actions := reg.Remote().Actions()
		require.Equal(t, []string{"quit"}, actions.ListActions())
		actions.ActivateActionFull("quit", variant.Variant{}, cwd("/home"))
		require.Equal(t, []string{"/home", "quit"}, seen)
	})

	t.Run("will return ErrNameTaken", func(t *testing.T) {
		t.Run("if the claim must be primary", func(t *testing.T) {
			b := NewLocal()
			_, err := b.Claim(context.Background(), appID, Target{})
			require.NoError(t, err)

			_, err = b.Claim(context.Background(), appID, Target{}, PrimaryOnly())
			require.ErrorIs(t, err, ErrNameTaken)
		})

		t.Run("if the primary does not allow replacement", func(t *testing.T) {
			b := NewLocal()
			_, err := b.Claim(context.Background(), appID, Target{})
			require.NoError(t, err)

			_, err = b.Claim(context.Background(), appID, Target{}, Replace(), PrimaryOnly())
			require.ErrorIs(t, err, ErrNameTaken)
		})
	})

	t.Run("will replace a primary which allows it", func(t *testing.T) {
		b := NewLocal()

		var lost int
		old, err := b.Claim(context.Background(), appID, Target{
			AllowReplacement: true,
			NameLost:         func() { lost++ },
		})
		require.NoError(t, err)

		next := &recordingActivator{}
		reg, err := b.Claim(context.Background(), appID, Target{Activator: next}, Replace())
		require.NoError(t, err)
		require.False(t, reg.IsRemote())
		require.Equal(t, 1, lost)

		require.NoError(t, old.Release(context.Background()))

		r, err := b.Lookup(context.Background(), appID)
		require.NoError(t, err)
		require.NoError(t, r.Activate(context.Background(), cwd("/")))
		require.Equal(t, []string{"activate"}, next.calls)
	})

	t.Run("will return the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewLocal().Claim(ctx, appID, Target{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocal_Lookup(t *testing.T) {
	t.Run("will return ErrNoPrimary", func(t *testing.T) {
		t.Run("if the name was never claimed", func(t *testing.T) {
			_, err := NewLocal().Lookup(context.Background(), "org.example.Editor")
			require.ErrorIs(t, err, ErrNoPrimary)
		})

		t.Run("if the name was released", func(t *testing.T) {
			b := NewLocal()
			reg, err := b.Claim(context.Background(), "org.example.Editor", Target{})
			require.NoError(t, err)
			require.NoError(t, reg.Release(context.Background()))
			require.NoError(t, reg.Release(context.Background()))

			_, err = b.Lookup(context.Background(), "org.example.Editor")
			require.ErrorIs(t, err, ErrNoPrimary)
		})
	})

	t.Run("will tolerate a primary without activator", func(t *testing.T) {
		b := NewLocal()
		_, err := b.Claim(context.Background(), "org.example.Editor", Target{})
		require.NoError(t, err)

		r, err := b.Lookup(context.Background(), "org.example.Editor")
		require.NoError(t, err)

		status, err := r.CommandLine(context.Background(), nil, cwd("/"))
		require.NoError(t, err)
		require.Zero(t, status)
	})
}

func TestTarget_Do(t *testing.T) {
	t.Run("will run requests through Invoke", func(t *testing.T) {
		var invoked int
		primary := &recordingActivator{}

		b := NewLocal()
		_, err := b.Claim(context.Background(), "org.example.Editor", Target{
			Activator: primary,
			Invoke: func(ctx context.Context, f func()) error {
				invoked++
				f()
				return nil
			},
		})
		require.NoError(t, err)

		r, err := b.Lookup(context.Background(), "org.example.Editor")
		require.NoError(t, err)
		require.NoError(t, r.Activate(context.Background(), cwd("/")))
		require.NoError(t, r.Open(context.Background(), []string{"a"}, "", cwd("/")))

		require.Equal(t, 2, invoked)
		require.Equal(t, []string{"activate", "open:", "a"}, primary.calls)
	})

	t.Run("will return the error of Invoke", func(t *testing.T) {
		target := Target{
			Invoke: func(context.Context, func()) error {
				return context.DeadlineExceeded
			},
		}

		called := false
		err := target.Do(context.Background(), func() { called = true })
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, called)
	})
}
