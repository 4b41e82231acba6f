// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

func captureDiagnostics(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	SetLogHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))
	t.Cleanup(func() {
		SetLogHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{}))
	})
	return &buf
}

type stateChange struct {
	name   string
	state  variant.Variant
	detail quark.Quark
}

func recordStateChanges(g Group) *[]stateChange {
	var changes []stateChange
	signal.Connect(g, "action-state-changed", func(inst value.Instance, name string, state variant.Variant) {
		hint, _ := signal.InvocationHintOf(inst)
		changes = append(changes, stateChange{name: name, state: state, detail: hint.Detail})
	})
	return &changes
}

func ExampleSimple_Activate() {
	a := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
	defer a.Unref()

	a.Activate(variant.Variant{})
	fmt.Println(a.State())
	// Output: true
}

func TestNewSimple(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the name is invalid", func(t *testing.T) {
			buf := captureDiagnostics(t)

			require.Nil(t, NewSimple("no spaces", variant.Type{}))
			require.Contains(t, buf.String(), "invalid action name")
		})

		t.Run("if the parameter type is not definite", func(t *testing.T) {
			captureDiagnostics(t)

			require.Nil(t, NewSimple("any", variant.TypeAny))
		})

		t.Run("if a stateful action has no initial state", func(t *testing.T) {
			captureDiagnostics(t)

			require.Nil(t, NewSimpleStateful("bold", variant.Type{}, variant.Variant{}))
		})
	})

	t.Run("will start enabled", func(t *testing.T) {
		a := NewSimple("quit", variant.Type{})
		defer a.Unref()

		require.True(t, a.Enabled())
		require.True(t, a.StateType().IsZero())
		require.False(t, a.State().IsValid())
		require.True(t, a.InstanceType().IsA(TypeAction))
	})
}

func TestSimple_Activate(t *testing.T) {
	t.Run("will toggle a boolean state", func(t *testing.T) {
		t.Run("if no parameter is given and no handler is connected", func(t *testing.T) {
			g := NewSimpleGroup()
			defer g.Unref()
			bold := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
			defer bold.Unref()
			g.AddAction(bold)

			changes := recordStateChanges(g)
			bold.Activate(variant.Variant{})

			require.True(t, bold.State().Equal(variant.NewBool(true)))
			require.Len(t, *changes, 1)
			require.Equal(t, "bold", (*changes)[0].name)
			require.True(t, (*changes)[0].state.Equal(variant.NewBool(true)))
			require.Equal(t, quark.FromString("bold"), (*changes)[0].detail)
		})
	})

	t.Run("will request the parameter as state", func(t *testing.T) {
		t.Run("if the parameter has the state type", func(t *testing.T) {
			a := NewSimpleStateful("zoom", variant.TypeInt32, variant.NewInt32(1))
			defer a.Unref()

			a.Activate(variant.NewInt32(3))

			require.True(t, a.State().Equal(variant.NewInt32(3)))
		})
	})

	t.Run("will only emit the activate signal", func(t *testing.T) {
		t.Run("if a handler is connected", func(t *testing.T) {
			a := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
			defer a.Unref()

			var activations int
			a.OnActivate(func(got *Simple, parameter variant.Variant) {
				require.Same(t, a, got)
				require.False(t, parameter.IsValid())
				activations++
			})
			a.Activate(variant.Variant{})

			require.Equal(t, 1, activations)
			require.True(t, a.State().Equal(variant.NewBool(false)))
		})
	})

	t.Run("will pass the parameter to the handler", func(t *testing.T) {
		a := NewSimple("print-string", variant.TypeString)
		defer a.Unref()

		var got []string
		a.OnActivate(func(_ *Simple, parameter variant.Variant) {
			got = append(got, parameter.Str())
		})
		a.Activate(variant.NewString("hello"))

		require.Equal(t, []string{"hello"}, got)
	})

	t.Run("will do nothing", func(t *testing.T) {
		t.Run("if the action is disabled", func(t *testing.T) {
			a := NewSimple("quit", variant.Type{})
			defer a.Unref()

			var activations int
			a.OnActivate(func(*Simple, variant.Variant) { activations++ })
			a.SetEnabled(false)
			a.Activate(variant.Variant{})

			require.Zero(t, activations)
		})

		t.Run("if the parameter type does not match", func(t *testing.T) {
			testCases := []struct {
				Name      string
				ParamType variant.Type
				Parameter variant.Variant
			}{
				{Name: "if a parameter is given to an action without one", Parameter: variant.NewString("x")},
				{Name: "if no parameter is given to an action with one", ParamType: variant.TypeString},
				{Name: "if the parameter has another type", ParamType: variant.TypeString, Parameter: variant.NewInt32(1)},
			}

			for _, testCase := range testCases {
				t.Run(testCase.Name, func(t *testing.T) {
					buf := captureDiagnostics(t)
					a := NewSimple("act", testCase.ParamType)
					defer a.Unref()

					var activations int
					a.OnActivate(func(*Simple, variant.Variant) { activations++ })
					a.Activate(testCase.Parameter)

					require.Zero(t, activations)
					require.Contains(t, buf.String(), "parameter has incompatible type")
				})
			}
		})

		t.Run("if a stateless action has no handler", func(t *testing.T) {
			a := NewSimple("quit", variant.Type{})
			defer a.Unref()

			a.Activate(variant.Variant{})
			require.False(t, a.State().IsValid())
		})

		t.Run("if the parameter type differs from the state type", func(t *testing.T) {
			a := NewSimpleStateful("mode", variant.TypeInt32, variant.NewString("a"))
			defer a.Unref()

			a.Activate(variant.NewInt32(1))
			require.True(t, a.State().Equal(variant.NewString("a")))
		})
	})
}

func TestSimple_ChangeState(t *testing.T) {
	t.Run("will set the state and notify once", func(t *testing.T) {
		t.Run("if the state changes and no handler is connected", func(t *testing.T) {
			states := []variant.Variant{
				variant.NewString("left"),
				variant.NewString("left"),
				variant.NewString("right"),
				variant.NewString("right"),
				variant.NewString("left"),
			}

			g := NewSimpleGroup()
			defer g.Unref()
			a := NewSimpleStateful("align", variant.TypeString, variant.NewString("left"))
			defer a.Unref()
			g.AddAction(a)
			changes := recordStateChanges(g)

			var want []string
			prev := a.State()
			for _, v := range states {
				a.ChangeState(v)
				require.True(t, a.State().Equal(v))
				if !prev.Equal(v) {
					want = append(want, v.Str())
				}
				prev = v
			}

			var got []string
			for _, c := range *changes {
				got = append(got, c.state.Str())
			}
			require.Equal(t, want, got)
		})
	})

	t.Run("will only emit the change-state signal", func(t *testing.T) {
		t.Run("if a handler is connected", func(t *testing.T) {
			a := NewSimpleStateful("volume", variant.Type{}, variant.NewInt32(5))
			defer a.Unref()

			a.OnChangeState(func(a *Simple, v variant.Variant) {
				if v.Int32() <= 10 {
					a.SetState(v)
				}
			})
			a.ChangeState(variant.NewInt32(11))
			require.True(t, a.State().Equal(variant.NewInt32(5)))

			a.ChangeState(variant.NewInt32(7))
			require.True(t, a.State().Equal(variant.NewInt32(7)))
		})
	})

	t.Run("will do nothing", func(t *testing.T) {
		t.Run("if the action is disabled", func(t *testing.T) {
			a := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
			defer a.Unref()

			a.SetEnabled(false)
			a.ChangeState(variant.NewBool(true))
			require.True(t, a.State().Equal(variant.NewBool(false)))
		})

		t.Run("if the value has another type", func(t *testing.T) {
			buf := captureDiagnostics(t)
			a := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
			defer a.Unref()

			a.ChangeState(variant.NewString("true"))
			require.True(t, a.State().Equal(variant.NewBool(false)))
			require.Contains(t, buf.String(), "requested state has incompatible type")
		})

		t.Run("if the action is stateless", func(t *testing.T) {
			buf := captureDiagnostics(t)
			a := NewSimple("quit", variant.Type{})
			defer a.Unref()

			a.ChangeState(variant.NewBool(true))
			require.Contains(t, buf.String(), "can not change state of stateless action")
		})
	})
}

func TestSimple_SetEnabled(t *testing.T) {
	t.Run("will emit action-enabled-changed", func(t *testing.T) {
		t.Run("if the enabled flag changes", func(t *testing.T) {
			g := NewSimpleGroup()
			defer g.Unref()
			a := NewSimple("quit", variant.Type{})
			defer a.Unref()
			g.AddAction(a)

			var got []bool
			signal.Connect(g, "action-enabled-changed::quit", func(_ value.Instance, name string, enabled bool) {
				require.Equal(t, "quit", name)
				got = append(got, enabled)
			})

			a.SetEnabled(false)
			a.SetEnabled(false)
			a.SetEnabled(true)

			require.Equal(t, []bool{false, true}, got)
			require.True(t, g.ActionEnabled("quit"))
		})
	})
}
