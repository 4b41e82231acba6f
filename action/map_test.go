// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

type groupEvent struct {
	signal string
	name   string
	detail quark.Quark
}

func recordGroupEvents(g Group) *[]groupEvent {
	var events []groupEvent
	record := func(sig string) func(value.Instance, string) {
		return func(inst value.Instance, name string) {
			hint, _ := signal.InvocationHintOf(inst)
			events = append(events, groupEvent{signal: sig, name: name, detail: hint.Detail})
		}
	}
	signal.Connect(g, "action-added", record("action-added"))
	signal.Connect(g, "action-removed", record("action-removed"))
	return &events
}

func TestSimpleGroup_AddAction(t *testing.T) {
	t.Run("will forget the action after it is removed", func(t *testing.T) {
		names := []string{"quit", "app.open", "win.zoom-in", "a"}

		for _, name := range names {
			t.Run(name, func(t *testing.T) {
				g := NewSimpleGroup()
				defer g.Unref()
				events := recordGroupEvents(g)

				a := NewSimple(name, variant.Type{})
				defer a.Unref()
				g.AddAction(a)
				require.True(t, g.HasAction(name))
				require.Contains(t, g.ListActions(), name)

				g.RemoveAction(name)
				require.False(t, g.HasAction(name))
				require.NotContains(t, g.ListActions(), name)
				require.Nil(t, g.LookupAction(name))

				detail := quark.FromString(name)
				require.Equal(t, []groupEvent{
					{signal: "action-added", name: name, detail: detail},
					{signal: "action-removed", name: name, detail: detail},
				}, *events)
			})
		}
	})

	t.Run("will remove the previous action first", func(t *testing.T) {
		t.Run("if an action with the same name exists", func(t *testing.T) {
			g := NewSimpleGroup()
			defer g.Unref()

			first := NewSimple("quit", variant.Type{})
			defer first.Unref()
			g.AddAction(first)

			events := recordGroupEvents(g)
			second := NewSimpleStateful("quit", variant.Type{}, variant.NewBool(true))
			defer second.Unref()
			g.AddAction(second)

			require.Equal(t, []string{"action-removed", "action-added"}, []string{(*events)[0].signal, (*events)[1].signal})
			require.Same(t, second, g.LookupAction("quit"))

			var enabled []bool
			signal.Connect(g, "action-enabled-changed", func(_ value.Instance, _ string, b bool) {
				enabled = append(enabled, b)
			})
			first.SetEnabled(false)
			require.Empty(t, enabled)
		})
	})

	t.Run("will not emit anything", func(t *testing.T) {
		t.Run("if the same action is added twice", func(t *testing.T) {
			g := NewSimpleGroup()
			defer g.Unref()
			a := NewSimple("quit", variant.Type{})
			defer a.Unref()
			g.AddAction(a)

			events := recordGroupEvents(g)
			g.AddAction(a)
			require.Empty(t, *events)
		})

		t.Run("if a missing action is removed", func(t *testing.T) {
			g := NewSimpleGroup()
			defer g.Unref()

			events := recordGroupEvents(g)
			g.RemoveAction("missing")
			require.Empty(t, *events)
		})
	})

	t.Run("will let subscribers filter by action name", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		var added []string
		signal.Connect(g, "action-added::paste", func(_ value.Instance, name string) {
			added = append(added, name)
		})

		for _, name := range []string{"copy", "paste", "cut"} {
			a := NewSimple(name, variant.Type{})
			g.AddAction(a)
			a.Unref()
		}
		require.Equal(t, []string{"paste"}, added)
	})

	t.Run("will still know the action while action-removed is emitted", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()
		a := NewSimple("quit", variant.Type{})
		defer a.Unref()
		g.AddAction(a)

		var known bool
		signal.Connect(g, "action-removed", func(_ value.Instance, name string) {
			known = g.HasAction(name)
		})
		g.RemoveAction("quit")
		require.True(t, known)
	})

	t.Run("will hold a reference to the action", func(t *testing.T) {
		g := NewSimpleGroup()
		a := NewSimple("quit", variant.Type{})
		g.AddAction(a)
		require.Equal(t, 2, a.RefCount())

		g.Unref()
		require.Equal(t, 1, a.RefCount())
		a.Unref()
	})
}

func TestSimpleGroup_QueryAction(t *testing.T) {
	g := NewSimpleGroup()
	defer g.Unref()

	a := NewSimpleStateful("zoom", variant.TypeInt32, variant.NewInt32(1))
	defer a.Unref()
	a.SetStateHint(variant.NewTuple(variant.NewInt32(1), variant.NewInt32(10)))
	g.AddAction(a)

	t.Run("will report every field", func(t *testing.T) {
		info, ok := g.QueryAction("zoom")
		require.True(t, ok)
		require.True(t, info.Enabled)
		require.Equal(t, variant.TypeInt32, info.ParameterType)
		require.Equal(t, variant.TypeInt32, info.StateType)
		require.True(t, info.State.Equal(variant.NewInt32(1)))
		require.Equal(t, "(1, 10)", info.StateHint.Print(true))
	})

	t.Run("will agree with the getters", func(t *testing.T) {
		require.True(t, g.ActionEnabled("zoom"))
		require.Equal(t, variant.TypeInt32, g.ActionParameterType("zoom"))
		require.Equal(t, variant.TypeInt32, g.ActionStateType("zoom"))
		require.True(t, g.ActionState("zoom").Equal(variant.NewInt32(1)))
		require.True(t, g.ActionStateHint("zoom").IsValid())
	})

	t.Run("will return false", func(t *testing.T) {
		t.Run("if the action does not exist", func(t *testing.T) {
			_, ok := g.QueryAction("missing")
			require.False(t, ok)
			require.False(t, g.HasAction("missing"))
		})
	})
}

func TestSimpleGroup_ActivateAction(t *testing.T) {
	t.Run("will forward to the action", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		a := NewSimpleStateful("bold", variant.Type{}, variant.NewBool(false))
		defer a.Unref()
		g.AddAction(a)

		g.ActivateAction("bold", variant.Variant{})
		require.True(t, g.ActionState("bold").Bool())

		g.ChangeActionState("bold", variant.NewBool(false))
		require.False(t, g.ActionState("bold").Bool())
	})

	t.Run("will activate a detailed name", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		var got []int32
		AddEntries(g, []Entry{
			{
				Name:          "open",
				ParameterType: "(iii)",
				Activate: func(_ *Simple, parameter variant.Variant, _ any) {
					for _, c := range parameter.Children() {
						got = append(got, c.Int32())
					}
				},
			},
		}, nil)

		require.NoError(t, ActivateDetailed(g, "open((1,2,3))"))
		require.Equal(t, []int32{1, 2, 3}, got)
	})

	t.Run("will log a diagnostic", func(t *testing.T) {
		t.Run("if the action does not exist", func(t *testing.T) {
			buf := captureDiagnostics(t)
			g := NewSimpleGroup()
			defer g.Unref()

			g.ActivateAction("missing", variant.Variant{})
			require.Contains(t, buf.String(), "can not activate unknown action")
		})
	})
}

func TestAddEntries(t *testing.T) {
	t.Run("will add an action per entry", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		AddEntries(g, []Entry{
			{Name: "quit"},
			{Name: "print-string", ParameterType: "s"},
		}, nil)

		require.ElementsMatch(t, []string{"print-string", "quit"}, g.ListActions())

		info, ok := g.QueryAction("print-string")
		require.True(t, ok)
		require.Equal(t, variant.TypeString, info.ParameterType)
		require.True(t, info.StateType.IsZero())
		require.False(t, info.State.IsValid())
	})

	t.Run("will parse the initial state", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		AddEntries(g, []Entry{
			{Name: "bold", State: "false"},
			{Name: "align", ParameterType: "s", State: "'left'"},
		}, nil)

		require.True(t, g.ActionState("bold").Equal(variant.NewBool(false)))
		require.Equal(t, variant.TypeString, g.ActionStateType("align"))
	})

	t.Run("will connect the callbacks with user data", func(t *testing.T) {
		g := NewSimpleGroup()
		defer g.Unref()

		type counter struct{ activated, changed int }
		c := &counter{}
		AddEntries(g, []Entry{
			{
				Name: "volume",
				Activate: func(_ *Simple, _ variant.Variant, userData any) {
					userData.(*counter).activated++
				},
				State: "5",
				ChangeState: func(a *Simple, v variant.Variant, userData any) {
					userData.(*counter).changed++
					a.SetState(v)
				},
			},
		}, c)

		g.ActivateAction("volume", variant.Variant{})
		g.ChangeActionState("volume", variant.NewInt32(6))

		require.Equal(t, &counter{activated: 1, changed: 1}, c)
		require.True(t, g.ActionState("volume").Equal(variant.NewInt32(6)))
	})

	t.Run("will skip invalid entries", func(t *testing.T) {
		testCases := []struct {
			Name       string
			Entry      Entry
			Diagnostic string
		}{
			{
				Name:       "if the parameter type is invalid",
				Entry:      Entry{Name: "bad-type", ParameterType: "a{"},
				Diagnostic: "invalid parameter type",
			},
			{
				Name:       "if the initial state does not parse",
				Entry:      Entry{Name: "bad-state", State: "[1, 'a']"},
				Diagnostic: "invalid initial state",
			},
			{
				Name:       "if the name is invalid",
				Entry:      Entry{Name: "bad name"},
				Diagnostic: "invalid action name",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				buf := captureDiagnostics(t)
				g := NewSimpleGroup()
				defer g.Unref()

				AddEntries(g, []Entry{{Name: "before"}, testCase.Entry, {Name: "after"}}, nil)

				require.Equal(t, []string{"after", "before"}, g.ListActions())
				require.Contains(t, buf.String(), testCase.Diagnostic)
			})
		}
	})
}

func TestSetEnabled(t *testing.T) {
	g := NewSimpleGroup()
	defer g.Unref()
	AddEntries(g, []Entry{{Name: "quit"}}, nil)

	t.Run("will disable a simple action", func(t *testing.T) {
		require.True(t, SetEnabled(g, "quit", false))
		require.False(t, g.ActionEnabled("quit"))
	})

	t.Run("will return false", func(t *testing.T) {
		t.Run("if the action does not exist", func(t *testing.T) {
			require.False(t, SetEnabled(g, "missing", false))
		})
	})
}

var typeGetterGroup = func() value.Type {
	t := value.Register(value.Object, "GetterGroup", nil)
	value.AddInterface(t, TypeGroup)
	return t
}()

var typeIncompleteGroup = func() value.Type {
	t := value.Register(value.Object, "IncompleteGroup", nil)
	value.AddInterface(t, TypeGroup)
	return t
}()

type getterGroup struct {
	GroupBase
}

func (g *getterGroup) ListActions() []string                     { return []string{"only"} }
func (g *getterGroup) HasAction(name string) bool                { return name == "only" }
func (g *getterGroup) ActionEnabled(string) bool                 { return true }
func (g *getterGroup) ActionParameterType(string) variant.Type   { return variant.TypeString }
func (g *getterGroup) ActionStateType(string) variant.Type       { return variant.Type{} }
func (g *getterGroup) ActionStateHint(string) variant.Variant    { return variant.Variant{} }
func (g *getterGroup) ActionState(string) variant.Variant        { return variant.Variant{} }
func (g *getterGroup) ActivateAction(string, variant.Variant)    {}
func (g *getterGroup) ChangeActionState(string, variant.Variant) {}

type incompleteGroup struct {
	GroupBase
}

func (g *incompleteGroup) ListActions() []string                     { return nil }
func (g *incompleteGroup) ActivateAction(string, variant.Variant)    {}
func (g *incompleteGroup) ChangeActionState(string, variant.Variant) {}

func TestGroupBase(t *testing.T) {
	t.Run("will build QueryAction from the getters", func(t *testing.T) {
		g := &getterGroup{}
		g.Init(typeGetterGroup, g)
		defer g.Unref()

		info, ok := g.QueryAction("only")
		require.True(t, ok)
		require.Equal(t, Info{Enabled: true, ParameterType: variant.TypeString}, info)

		_, ok = g.QueryAction("other")
		require.False(t, ok)
	})

	t.Run("will log a diagnostic instead of recursing", func(t *testing.T) {
		t.Run("if neither QueryAction nor the getters are implemented", func(t *testing.T) {
			buf := captureDiagnostics(t)
			g := &incompleteGroup{}
			g.Init(typeIncompleteGroup, g)
			defer g.Unref()

			require.False(t, g.HasAction("x"))
			require.False(t, g.ActionEnabled("x"))
			require.Contains(t, buf.String(), "group implements neither QueryAction nor the action getters")
		})
	})
}
