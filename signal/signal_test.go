// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/quark"
	"github.com/z5labs/strata/value"
)

type testInstance struct {
	typ value.Type
}

func (i *testInstance) InstanceType() value.Type { return i.typ }

func newType(t *testing.T, parent value.Type, suffix string) value.Type {
	name := strings.NewReplacer("/", ".", " ", "_").Replace(t.Name()) + suffix
	typ := value.Register(parent, name, nil)
	require.NotEqual(t, value.Invalid, typ)
	return typ
}

func captureDiagnostics(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	SetLogHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))
	t.Cleanup(func() {
		SetLogHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{}))
	})
	return &buf
}

func instanceParams(inst value.Instance, args ...any) []value.Value {
	params := make([]value.Value, len(args)+1)
	params[0].InitFromInstance(inst)
	for i, a := range args {
		v, err := value.Of(a)
		if err != nil {
			panic(err)
		}
		params[i+1] = v
	}
	return params
}

func TestNew(t *testing.T) {
	t.Run("will return zero", func(t *testing.T) {
		testCases := []struct {
			name       string
			signal     string
			flags      Flags
			returnType value.Type
			params     []value.Type
			opts       []Option
		}{
			{name: "empty name", signal: ""},
			{name: "leading digit", signal: "1changed"},
			{name: "double separator", signal: "a--b"},
			{name: "trailing separator", signal: "changed-"},
			{name: "colon", signal: "a:b"},
			{name: "parameter without value table", signal: "p", params: []value.Type{value.Interface}},
			{name: "return value when only running first", signal: "r", flags: RunFirst, returnType: value.Int},
			{
				name:   "accumulator without return value",
				signal: "acc",
				opts:   []Option{WithAccumulator(AccumulatorFirstWins)},
			},
		}

		for _, tc := range testCases {
			t.Run("if the signal has "+tc.name, func(t *testing.T) {
				captureDiagnostics(t)
				typ := newType(t, value.Object, "")

				rtype := tc.returnType
				if rtype == value.Invalid {
					rtype = value.None
				}
				id := New(tc.signal, typ, tc.flags, rtype, tc.params, tc.opts...)
				require.Equal(t, ID(0), id)
			})
		}
	})

	t.Run("will canonicalise mixed separators", func(t *testing.T) {
		typ := newType(t, value.Object, "")

		id := New("state_changed-now", typ, RunLast, value.None, nil)
		require.NotEqual(t, ID(0), id)
		require.Equal(t, "state-changed-now", Name(id))
		require.Equal(t, id, Lookup("state_changed_now", typ))
		require.Equal(t, id, Lookup("state-changed-now", typ))
	})

	t.Run("will return the existing id", func(t *testing.T) {
		t.Run("if the signal is registered twice on the same owner", func(t *testing.T) {
			buf := captureDiagnostics(t)
			typ := newType(t, value.Object, "")

			a := New("changed", typ, RunLast, value.None, nil)
			b := New("changed", typ, RunLast, value.None, nil)
			require.NotEqual(t, ID(0), a)
			require.Equal(t, a, b)
			require.Contains(t, buf.String(), "already exists")
		})
	})

	t.Run("will default to running last", func(t *testing.T) {
		typ := newType(t, value.Object, "")

		id := New("changed", typ, 0, value.None, nil)
		q, ok := QuerySignal(id)
		require.True(t, ok)
		require.Equal(t, RunLast, q.Flags&runMask)
	})
}

func TestLookup(t *testing.T) {
	t.Run("will find signals of ancestors and interfaces", func(t *testing.T) {
		iface := newType(t, value.Interface, "Iface")
		base := newType(t, value.Object, "Base")
		child := newType(t, base, "Child")
		value.AddInterface(child, iface)

		onBase := New("base-signal", base, RunLast, value.None, nil)
		onIface := New("iface-signal", iface, RunLast, value.None, nil)

		require.Equal(t, onBase, Lookup("base-signal", child))
		require.Equal(t, onIface, Lookup("iface-signal", child))
		require.Equal(t, ID(0), Lookup("iface-signal", base))
		require.Equal(t, ID(0), Lookup("missing", child))
		require.Equal(t, []ID{onBase}, ListIDs(base))
	})
}

func TestParseName(t *testing.T) {
	typ := newType(t, value.Object, "")
	changed := New("changed", typ, RunLast, value.None, nil)
	notify := New("notify", typ, RunFirst|Detailed, value.None, nil)

	t.Run("will parse names with and without detail", func(t *testing.T) {
		id, detail, err := ParseName("changed", typ, false)
		require.Nil(t, err)
		require.Equal(t, changed, id)
		require.Equal(t, quark.Quark(0), detail)

		id, detail, err = ParseName("notify::title", typ, true)
		require.Nil(t, err)
		require.Equal(t, notify, id)
		require.Equal(t, "title", detail.String())
	})

	t.Run("will not intern the detail", func(t *testing.T) {
		t.Run("if force is false", func(t *testing.T) {
			id, detail, err := ParseName("notify::never-seen-before-detail", typ, false)
			require.Nil(t, err)
			require.Equal(t, notify, id)
			require.Equal(t, quark.Quark(0), detail)
			require.Equal(t, quark.Quark(0), quark.TryString("never-seen-before-detail"))
		})
	})

	t.Run("will return a ParseNameError", func(t *testing.T) {
		names := []string{"notify:title", "notify::", "notify::a::b", ":notify", "changed::x"}
		for _, name := range names {
			t.Run("if the name is "+name, func(t *testing.T) {
				_, _, err := ParseName(name, typ, true)

				var pe ParseNameError
				require.ErrorAs(t, err, &pe)
			})
		}
	})

	t.Run("will return an UnknownSignalError", func(t *testing.T) {
		t.Run("if the signal does not exist", func(t *testing.T) {
			_, _, err := ParseName("missing", typ, true)

			var ue UnknownSignalError
			require.ErrorAs(t, err, &ue)
			require.Equal(t, "missing", ue.Name)
		})
	})
}

func TestEmit(t *testing.T) {
	t.Run("will invoke handlers around the class closure", func(t *testing.T) {
		typ := newType(t, value.Object, "")

		var log []string
		id := New("changed", typ, RunLast, value.None, nil, ClassClosure(NewClosure(func(value.Instance) {
			log = append(log, "b")
		})))
		inst := &testInstance{typ: typ}

		ConnectAfter(inst, "changed", func(value.Instance) { log = append(log, "c") })
		Connect(inst, "changed", func(value.Instance) { log = append(log, "a") })

		Emit(inst, id, 0)
		require.Equal(t, []string{"a", "b", "c"}, log)
	})

	t.Run("will only invoke handlers matching the detail", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("notify", typ, RunFirst|Detailed, value.None, nil)
		inst := &testInstance{typ: typ}

		var onX, onAny int
		Connect(inst, "notify::x", func(value.Instance) { onX++ })
		Connect(inst, "notify", func(value.Instance) { onAny++ })

		Emit(inst, id, quark.FromString("y"))
		require.Equal(t, 0, onX)
		require.Equal(t, 1, onAny)

		Emit(inst, id, quark.FromString("x"))
		require.Equal(t, 1, onX)
		require.Equal(t, 2, onAny)
	})

	t.Run("will invoke handlers in connection order with after handlers last", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var log []string
		ConnectAfter(inst, "changed", func(value.Instance) { log = append(log, "after-1") })
		Connect(inst, "changed", func(value.Instance) { log = append(log, "before-1") })
		ConnectAfter(inst, "changed", func(value.Instance) { log = append(log, "after-2") })
		Connect(inst, "changed", func(value.Instance) { log = append(log, "before-2") })

		Emit(inst, id, 0)
		require.Equal(t, []string{"before-1", "before-2", "after-1", "after-2"}, log)
	})

	t.Run("will invoke the class closure exactly once", func(t *testing.T) {
		for _, flags := range []Flags{RunFirst, RunLast, RunCleanup} {
			typ := newType(t, value.Object, fmt.Sprint(flags))

			var calls int
			id := New("changed", typ, flags, value.None, nil, ClassClosure(NewClosure(func(value.Instance) {
				calls++
			})))
			inst := &testInstance{typ: typ}
			Connect(inst, "changed", func(value.Instance) {})

			Emit(inst, id, 0)
			require.Equal(t, 1, calls)
		}
	})

	t.Run("will not invoke handlers connected during the emission", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var log []string
		var connected bool
		Connect(inst, "changed", func(inst value.Instance) {
			log = append(log, "first")
			if !connected {
				connected = true
				Connect(inst, "changed", func(value.Instance) { log = append(log, "late") })
			}
		})

		Emit(inst, id, 0)
		require.Equal(t, []string{"first"}, log)

		Emit(inst, id, 0)
		require.Equal(t, []string{"first", "first", "late"}, log)
	})

	t.Run("will not invoke handlers disconnected during the emission", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var log []string
		var second HandlerID
		Connect(inst, "changed", func(inst value.Instance) {
			log = append(log, "first")
			Disconnect(inst, second)
		})
		second = Connect(inst, "changed", func(value.Instance) { log = append(log, "second") })

		Emit(inst, id, 0)
		require.Equal(t, []string{"first"}, log)
		require.False(t, HandlerIsConnected(inst, second))
	})

	t.Run("will pass arguments to handlers", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("renamed", typ, RunLast, value.None, []value.Type{value.String, value.Boolean})
		inst := &testInstance{typ: typ}

		var gotName string
		var gotFlag bool
		var gotInst value.Instance
		Connect(inst, "renamed", func(inst value.Instance, name string, flag bool) {
			gotInst, gotName, gotFlag = inst, name, flag
		})

		Emit(inst, id, 0, "bold", true)
		require.Equal(t, inst, gotInst)
		require.Equal(t, "bold", gotName)
		require.True(t, gotFlag)
	})

	t.Run("will convert arguments for reflective handlers", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("resized", typ, RunLast, value.None, []value.Type{value.Int, value.Double})
		inst := &testInstance{typ: typ}

		var w int64
		var h float32
		Connect(inst, "resized", func(_ value.Instance, width int64, height float32) {
			w, h = width, height
		})

		Emit(inst, id, 0, 640, 480.5)
		require.Equal(t, int64(640), w)
		require.Equal(t, float32(480.5), h)
	})

	t.Run("will not invoke anything", func(t *testing.T) {
		t.Run("if an argument does not fit its parameter type", func(t *testing.T) {
			captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("resized", typ, RunLast, value.None, []value.Type{value.Int})
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "resized", func(value.Instance, int) { calls++ })

			Emit(inst, id, 0, "wide")
			require.Equal(t, 0, calls)
		})

		t.Run("if the number of arguments is wrong", func(t *testing.T) {
			captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("resized", typ, RunLast, value.None, []value.Type{value.Int})
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "resized", func(value.Instance, int) { calls++ })

			Emit(inst, id, 0)
			require.Equal(t, 0, calls)
		})

		t.Run("if the signal does not support details", func(t *testing.T) {
			buf := captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("changed", typ, RunLast, value.None, nil)
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "changed", func(value.Instance) { calls++ })

			Emit(inst, id, quark.FromString("x"))
			require.Equal(t, 0, calls)
			require.Contains(t, buf.String(), "does not support details")
		})

		t.Run("if the signal was destroyed", func(t *testing.T) {
			captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("changed", typ, RunLast, value.None, nil)
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "changed", func(value.Instance) { calls++ })
			DestroyForType(typ)

			Emit(inst, id, 0)
			require.Equal(t, 0, calls)
		})
	})

	t.Run("will propagate handler panics", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		h := Connect(inst, "changed", func(value.Instance) { panic("boom") })
		require.Panics(t, func() {
			Emit(inst, id, 0)
		})

		_, running := InvocationHintOf(inst)
		require.False(t, running)

		Disconnect(inst, h)
		var calls int
		Connect(inst, "changed", func(value.Instance) { calls++ })
		Emit(inst, id, 0)
		require.Equal(t, 1, calls)
	})
}

func TestEmitv(t *testing.T) {
	t.Run("will leave the return value untouched", func(t *testing.T) {
		t.Run("if a parameter has an incompatible type", func(t *testing.T) {
			buf := captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("check", typ, RunLast, value.Boolean, []value.Type{value.Int})
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "check", func(value.Instance, int) bool {
				calls++
				return false
			})

			var ret value.Value
			ret.Init(value.Boolean)
			ret.SetBool(true)

			params := instanceParams(inst, "not an int")
			defer unsetAll(params)

			Emitv(params, id, 0, &ret)
			require.True(t, ret.Bool())
			require.Equal(t, 0, calls)
			require.Contains(t, buf.String(), "incompatible type")
		})

		t.Run("if the return value has an incompatible type", func(t *testing.T) {
			captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("check", typ, RunLast, value.Boolean, nil)
			inst := &testInstance{typ: typ}

			var calls int
			Connect(inst, "check", func(value.Instance) bool {
				calls++
				return true
			})

			var ret value.Value
			ret.Init(value.String)
			ret.SetString("keep")

			params := instanceParams(inst)
			defer unsetAll(params)

			Emitv(params, id, 0, &ret)
			require.Equal(t, "keep", ret.String())
			require.Equal(t, 0, calls)
		})
	})
}

type emissionResult struct {
	initialised bool
	ret         any
	log         []string
}

func TestEmit_FastPath(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(t *testing.T, log *[]string) (value.Instance, ID)
	}{
		{
			name: "class closure with return value",
			setup: func(t *testing.T, log *[]string) (value.Instance, ID) {
				typ := newType(t, value.Object, "")
				id := New("query", typ, RunLast, value.Int, nil, ClassClosure(NewClosure(func(value.Instance) int {
					*log = append(*log, "class")
					return 7
				})))
				return &testInstance{typ: typ}, id
			},
		},
		{
			name: "single handler with return value",
			setup: func(t *testing.T, log *[]string) (value.Instance, ID) {
				typ := newType(t, value.Object, "")
				id := New("query", typ, RunLast, value.Int, nil)
				inst := &testInstance{typ: typ}
				Connect(inst, "query", func(value.Instance) int {
					*log = append(*log, "handler")
					return 9
				})
				return inst, id
			},
		},
		{
			name: "class closure running first",
			setup: func(t *testing.T, log *[]string) (value.Instance, ID) {
				typ := newType(t, value.Object, "")
				id := New("changed", typ, RunFirst, value.None, []value.Type{value.String}, ClassClosure(NewClosure(func(_ value.Instance, s string) {
					*log = append(*log, "class:"+s)
				})))
				return &testInstance{typ: typ}, id
			},
		},
		{
			name: "single handler with accumulator",
			setup: func(t *testing.T, log *[]string) (value.Instance, ID) {
				typ := newType(t, value.Object, "")
				id := New("query", typ, RunLast, value.Int, nil, WithAccumulator(AccumulatorFirstWins))
				inst := &testInstance{typ: typ}
				ConnectAfter(inst, "query", func(value.Instance) int {
					*log = append(*log, "handler")
					return 4
				})
				return inst, id
			},
		},
		{
			name: "no closures and a return value",
			setup: func(t *testing.T, log *[]string) (value.Instance, ID) {
				typ := newType(t, value.Object, "")
				id := New("query", typ, RunLast, value.Int, nil)
				return &testInstance{typ: typ}, id
			},
		},
	}

	for _, tc := range testCases {
		t.Run("will match the slow path for "+tc.name, func(t *testing.T) {
			var log []string
			inst, id := tc.setup(t, &log)

			q, ok := QuerySignal(id)
			require.True(t, ok)
			var args []any
			if len(q.Params) == 1 {
				args = append(args, "arg")
			}

			fastRet := Emit(inst, id, 0, args...)
			fast := emissionResult{initialised: fastRet.IsInitialized(), ret: fastRet.Get(), log: log}

			log = nil
			params := instanceParams(inst, args...)
			defer unsetAll(params)

			var slowRet value.Value
			if q.ReturnType != value.None {
				slowRet.Init(q.ReturnType)
			}
			Emitv(params, id, 0, &slowRet)
			slow := emissionResult{initialised: slowRet.IsInitialized(), ret: slowRet.Get(), log: log}

			require.Equal(t, slow, fast)
		})
	}
}

func TestAccumulator(t *testing.T) {
	t.Run("will stop once a handler returns true", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("handle", typ, RunLast, value.Boolean, nil, WithAccumulator(AccumulatorTrueHandled))
		inst := &testInstance{typ: typ}

		var log []string
		Connect(inst, "handle", func(value.Instance) bool {
			log = append(log, "a")
			return false
		})
		Connect(inst, "handle", func(value.Instance) bool {
			log = append(log, "b")
			return true
		})
		Connect(inst, "handle", func(value.Instance) bool {
			log = append(log, "c")
			return true
		})

		ret := Emit(inst, id, 0)
		require.True(t, ret.Bool())
		require.Equal(t, []string{"a", "b"}, log)
	})

	t.Run("will keep the first return value", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("status", typ, RunLast, value.Int, nil, WithAccumulator(AccumulatorFirstWins))
		inst := &testInstance{typ: typ}

		Connect(inst, "status", func(value.Instance) int { return 3 })
		Connect(inst, "status", func(value.Instance) int { return 5 })

		ret := Emit(inst, id, 0)
		require.Equal(t, 3, ret.Int())
	})

	t.Run("will flag only the first accumulated closure", func(t *testing.T) {
		typ := newType(t, value.Object, "")

		var firsts []bool
		sum := func(hint *InvocationHint, accu, handlerReturn *value.Value) bool {
			firsts = append(firsts, hint.RunType&AccumulatorFirstRun != 0)
			accu.SetInt(accu.Int() + handlerReturn.Int())
			return true
		}
		id := New("count", typ, RunLast, value.Int, nil, WithAccumulator(sum), ClassClosure(NewClosure(func(value.Instance) int {
			return 100
		})))
		inst := &testInstance{typ: typ}
		Connect(inst, "count", func(value.Instance) int { return 1 })
		ConnectAfter(inst, "count", func(value.Instance) int { return 10 })

		ret := Emit(inst, id, 0)
		require.Equal(t, 111, ret.Int())
		require.Equal(t, []bool{true, false, false}, firsts)
	})
}

func TestStopEmission(t *testing.T) {
	t.Run("will skip remaining closures but still clean up", func(t *testing.T) {
		typ := newType(t, value.Object, "")

		var log []string
		id := New("changed", typ, RunCleanup, value.None, nil, ClassClosure(NewClosure(func(value.Instance) {
			log = append(log, "cleanup")
		})))
		inst := &testInstance{typ: typ}

		Connect(inst, "changed", func(inst value.Instance) {
			log = append(log, "stopper")
			StopEmissionByName(inst, "changed")
		})
		Connect(inst, "changed", func(value.Instance) { log = append(log, "skipped") })
		ConnectAfter(inst, "changed", func(value.Instance) { log = append(log, "skipped-after") })

		Emit(inst, id, 0)
		require.Equal(t, []string{"stopper", "cleanup"}, log)
	})

	t.Run("will be ignored from an emission hook", func(t *testing.T) {
		buf := captureDiagnostics(t)
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		AddEmissionHook(id, 0, func(_ *InvocationHint, params []value.Value) bool {
			StopEmission(params[0].Instance(), id, 0)
			return true
		}, nil)

		var calls int
		Connect(inst, "changed", func(value.Instance) { calls++ })

		Emit(inst, id, 0)
		require.Equal(t, 1, calls)
		require.Contains(t, buf.String(), "emission hook")
	})
}

func TestNoRecurse(t *testing.T) {
	t.Run("will restart the outer emission instead of nesting", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast|NoRecurse, value.None, nil)
		inst := &testInstance{typ: typ}

		var depth, maxDepth, calls int
		Connect(inst, "changed", func(inst value.Instance) {
			depth++
			defer func() { depth-- }()
			maxDepth = max(maxDepth, depth)

			calls++
			if calls == 1 {
				Emit(inst, id, 0)
			}
		})

		Emit(inst, id, 0)
		require.Equal(t, 2, calls)
		require.Equal(t, 1, maxDepth)
	})
}

func TestEmissionHook(t *testing.T) {
	t.Run("will be removed after returning false", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var calls, destroyed int
		hook := AddEmissionHook(id, 0, func(*InvocationHint, []value.Value) bool {
			calls++
			return false
		}, func() { destroyed++ })
		require.NotEqual(t, HookID(0), hook)

		Emit(inst, id, 0)
		Emit(inst, id, 0)
		require.Equal(t, 1, calls)
		require.Equal(t, 1, destroyed)
	})

	t.Run("will run before handlers and filter by detail", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("notify", typ, RunLast|Detailed, value.None, nil)
		inst := &testInstance{typ: typ}

		var log []string
		AddEmissionHook(id, quark.FromString("x"), func(hint *InvocationHint, _ []value.Value) bool {
			log = append(log, "hook:"+hint.Detail.String())
			return true
		}, nil)
		Connect(inst, "notify", func(value.Instance) { log = append(log, "handler") })

		Emit(inst, id, quark.FromString("x"))
		Emit(inst, id, quark.FromString("y"))
		require.Equal(t, []string{"hook:x", "handler", "handler"}, log)
	})

	t.Run("will be refused", func(t *testing.T) {
		t.Run("if the signal does not support hooks", func(t *testing.T) {
			buf := captureDiagnostics(t)
			typ := newType(t, value.Object, "")
			id := New("changed", typ, RunLast|NoHooks, value.None, nil)

			hook := AddEmissionHook(id, 0, func(*InvocationHint, []value.Value) bool { return true }, nil)
			require.Equal(t, HookID(0), hook)
			require.Contains(t, buf.String(), "does not support emission hooks")
		})
	})

	t.Run("will stop running once removed", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var calls int
		hook := AddEmissionHook(id, 0, func(*InvocationHint, []value.Value) bool {
			calls++
			return true
		}, nil)

		Emit(inst, id, 0)
		RemoveEmissionHook(id, hook)
		Emit(inst, id, 0)
		require.Equal(t, 1, calls)
	})
}

func TestChainFromOverridden(t *testing.T) {
	base := newType(t, value.Object, "Base")
	child := newType(t, base, "Child")

	var log []string
	id := New("activate", base, RunLast, value.None, nil, ClassClosure(NewClosure(func(value.Instance) {
		log = append(log, "base")
	})))
	OverrideClassClosure(id, child, NewClosure(func(inst value.Instance) {
		log = append(log, "child")
		ChainFromOverriddenHandler(inst)
	}))

	t.Run("will invoke the overridden class closure", func(t *testing.T) {
		log = nil
		Emit(&testInstance{typ: child}, id, 0)
		require.Equal(t, []string{"child", "base"}, log)
	})

	t.Run("will invoke the default class closure for the owner", func(t *testing.T) {
		log = nil
		Emit(&testInstance{typ: base}, id, 0)
		require.Equal(t, []string{"base"}, log)
	})

	t.Run("will refuse a second override for the same type", func(t *testing.T) {
		buf := captureDiagnostics(t)

		OverrideClassClosure(id, child, NewClosure(func(value.Instance) {}))
		require.Contains(t, buf.String(), "already overridden")
	})

	t.Run("will do nothing outside of an emission", func(t *testing.T) {
		buf := captureDiagnostics(t)

		ChainFromOverriddenHandler(&testInstance{typ: child})
		require.Contains(t, buf.String(), "no signal is being emitted")
	})
}

func TestBlock(t *testing.T) {
	typ := newType(t, value.Object, "")
	id := New("changed", typ, RunLast, value.None, nil)
	inst := &testInstance{typ: typ}

	var calls int
	h := Connect(inst, "changed", func(value.Instance) { calls++ })

	t.Run("will skip blocked handlers until unblocked", func(t *testing.T) {
		Block(inst, h)
		Block(inst, h)
		Emit(inst, id, 0)
		Unblock(inst, h)
		Emit(inst, id, 0)
		require.Equal(t, 0, calls)

		Unblock(inst, h)
		Emit(inst, id, 0)
		require.Equal(t, 1, calls)
	})

	t.Run("will report unbalanced unblocks", func(t *testing.T) {
		buf := captureDiagnostics(t)

		Unblock(inst, h)
		require.Contains(t, buf.String(), "not blocked")
	})
}

func TestMatched(t *testing.T) {
	typ := newType(t, value.Object, "")
	id := New("notify", typ, RunLast|Detailed, value.None, nil)
	inst := &testInstance{typ: typ}

	var calls int
	tagged := func(value.Instance) { calls++ }
	a := Connect(inst, "notify::x", tagged, Data("tag"))
	b := Connect(inst, "notify", tagged, Data("tag"))
	other := Connect(inst, "notify", func(value.Instance) {})

	t.Run("will find the first matching handler", func(t *testing.T) {
		require.Equal(t, a, HandlerFind(inst, Match{Mask: MatchID, Signal: id}))
		require.Equal(t, a, HandlerFind(inst, Match{Mask: MatchDetail, Detail: quark.FromString("x")}))
		require.Equal(t, b, HandlerFind(inst, Match{Mask: MatchData | MatchDetail, Data: "tag"}))
		require.Equal(t, HandlerID(0), HandlerFind(inst, Match{Mask: MatchData, Data: "missing"}))
	})

	t.Run("will block and unblock by data", func(t *testing.T) {
		require.Equal(t, 2, BlockMatched(inst, Match{Mask: MatchData, Data: "tag"}))
		Emit(inst, id, quark.FromString("x"))
		require.Equal(t, 0, calls)
		require.Equal(t, HandlerID(0), HandlerFind(inst, Match{Mask: MatchData | MatchUnblocked, Data: "tag"}))

		require.Equal(t, 2, UnblockMatched(inst, Match{Mask: MatchData, Data: "tag"}))
		Emit(inst, id, quark.FromString("x"))
		require.Equal(t, 2, calls)
	})

	t.Run("will refuse to disconnect without closure, func or data", func(t *testing.T) {
		buf := captureDiagnostics(t)

		require.Equal(t, 0, DisconnectMatched(inst, Match{Mask: MatchID, Signal: id}))
		require.True(t, HandlerIsConnected(inst, other))
		require.Contains(t, buf.String(), "closure, func or data")
	})

	t.Run("will disconnect by func", func(t *testing.T) {
		require.Equal(t, 2, DisconnectMatched(inst, Match{Mask: MatchFunc, Func: tagged}))
		require.False(t, HandlerIsConnected(inst, a))
		require.False(t, HandlerIsConnected(inst, b))
		require.True(t, HandlerIsConnected(inst, other))
	})
}

func TestHasHandlerPending(t *testing.T) {
	base := newType(t, value.Object, "Base")
	child := newType(t, base, "Child")
	id := New("activate", base, RunLast, value.None, nil, ClassClosure(NewClosure(func(value.Instance) {})))
	OverrideClassClosure(id, child, NewClosure(func(value.Instance) {}))

	t.Run("will ignore the default class closure", func(t *testing.T) {
		require.False(t, HasHandlerPending(&testInstance{typ: base}, id, 0, false))
	})

	t.Run("will report overridden class closures", func(t *testing.T) {
		require.True(t, HasHandlerPending(&testInstance{typ: child}, id, 0, false))
	})

	t.Run("will report connected handlers", func(t *testing.T) {
		inst := &testInstance{typ: base}
		h := Connect(inst, "activate", func(value.Instance) {})
		require.True(t, HasHandlerPending(inst, id, 0, false))

		Block(inst, h)
		require.False(t, HasHandlerPending(inst, id, 0, false))
		require.True(t, HasHandlerPending(inst, id, 0, true))
	})
}

func TestClosure(t *testing.T) {
	t.Run("will disconnect its handlers when invalidated", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		var calls int
		c := NewClosure(func(value.Instance) { calls++ })
		h := ConnectClosureByID(inst, id, 0, c, false)
		require.False(t, c.IsFloating())
		require.True(t, HandlerIsConnected(inst, h))

		c.Invalidate()
		require.False(t, HandlerIsConnected(inst, h))

		Emit(inst, id, 0)
		require.Equal(t, 0, calls)
	})

	t.Run("will be invalidated once its last handler is disconnected", func(t *testing.T) {
		typ := newType(t, value.Object, "")
		id := New("changed", typ, RunLast, value.None, nil)
		inst := &testInstance{typ: typ}

		c := NewClosure(func(value.Instance) {})
		ConnectClosureByID(inst, id, 0, c, false)
		ConnectClosureByID(inst, id, 0, c, true)

		HandlersDestroy(inst)
		require.False(t, c.IsValid())
	})

	t.Run("will return nil", func(t *testing.T) {
		t.Run("if it is not given a func", func(t *testing.T) {
			captureDiagnostics(t)

			require.Nil(t, NewClosure(42))
			require.Nil(t, NewClosure(nil))
		})
	})
}

func TestInvocationHintOf(t *testing.T) {
	typ := newType(t, value.Object, "")
	id := New("notify", typ, RunFirst|Detailed, value.None, nil)
	inst := &testInstance{typ: typ}

	var hint InvocationHint
	var running bool
	Connect(inst, "notify::title", func(inst value.Instance) {
		hint, running = InvocationHintOf(inst)
	})

	Emit(inst, id, quark.FromString("title"))
	require.True(t, running)
	require.Equal(t, id, hint.SignalID)
	require.Equal(t, "title", hint.Detail.String())
	require.NotZero(t, hint.RunType&RunFirst)
}
