// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/variant"
)

func ExampleNotification_MarshalJSON() {
	n := New("Download finished")
	n.Priority = PriorityHigh
	n.SetDefaultAction("app.open('report.pdf')")
	n.AddButton("Show", "app.show-downloads")

	b, err := json.Marshal(n)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(b))
	// Output: {"title":"Download finished","priority":"high","default_action":"app.open::report.pdf","buttons":[{"label":"Show","action":"app.show-downloads"}]}
}

func TestPriority(t *testing.T) {
	t.Run("will round trip through text", func(t *testing.T) {
		for _, p := range []Priority{PriorityNormal, PriorityLow, PriorityHigh, PriorityUrgent} {
			b, err := p.MarshalText()
			require.NoError(t, err)

			var got Priority
			require.NoError(t, got.UnmarshalText(b))
			require.Equal(t, p, got)
		}
	})

	t.Run("will return an UnknownPriorityError", func(t *testing.T) {
		t.Run("if the nick is unknown", func(t *testing.T) {
			var p Priority
			err := p.UnmarshalText([]byte("critical"))

			var perr UnknownPriorityError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, "critical", perr.Nick)
		})
	})

	t.Run("will print out of range values", func(t *testing.T) {
		require.Equal(t, "Priority(9)", Priority(9).String())
	})
}

func TestNotification_SetDefaultAction(t *testing.T) {
	t.Run("will split the detailed action name", func(t *testing.T) {
		n := New("hello")
		require.NoError(t, n.SetDefaultAction("app.open::inbox"))

		require.Equal(t, "app.open", n.DefaultAction)
		require.True(t, n.DefaultActionTarget.Equal(variant.NewString("inbox")))
	})

	t.Run("will return the parse error", func(t *testing.T) {
		n := New("hello")
		err := n.SetDefaultAction("app.open(")

		var perr action.ParseDetailedNameError
		require.ErrorAs(t, err, &perr)
		require.Empty(t, n.DefaultAction)
	})

	t.Run("will warn", func(t *testing.T) {
		t.Run("if the action is not an application action", func(t *testing.T) {
			var buf bytes.Buffer
			SetLogHandler(slog.NewTextHandler(&buf, nil))
			t.Cleanup(func() { SetLogHandler(slog.NewTextHandler(&bytes.Buffer{}, nil)) })

			n := New("hello")
			require.NoError(t, n.AddButton("Close", "win.close"))
			require.Contains(t, buf.String(), "does not start with 'app.'")
			require.Len(t, n.Buttons, 1)
		})
	})
}

func TestNotification_Serialize(t *testing.T) {
	t.Run("will only include set fields", func(t *testing.T) {
		v := New("hello").Serialize()

		require.True(t, v.IsOfType(variant.TypeVardict))
		m := v.Vardict()
		require.Len(t, m, 2)
		require.Equal(t, "hello", m["title"].Str())
		require.Equal(t, "normal", m["priority"].Str())
	})

	t.Run("will serialize actions and buttons", func(t *testing.T) {
		n := New("hello")
		n.SetDefaultActionAndTarget("app.open", variant.NewInt32(3))
		n.AddButtonWithTarget("Reply", "app.reply", variant.NewString("bob"))
		n.AddButtonWithTarget("Dismiss", "app.dismiss", variant.Variant{})

		m := n.Serialize().Vardict()
		require.Equal(t, "app.open", m["default-action"].Str())
		require.True(t, m["default-action-target"].Equal(variant.NewInt32(3)))

		buttons := m["buttons"]
		require.Equal(t, "aa{sv}", buttons.Type().String())
		require.Equal(t, 2, buttons.NChildren())

		reply := buttons.Child(0).Vardict()
		require.Equal(t, "Reply", reply["label"].Str())
		require.True(t, reply["target"].Equal(variant.NewString("bob")))

		_, ok := buttons.Child(1).Lookup("target")
		require.False(t, ok)
	})
}

func TestNotification_UnmarshalJSON(t *testing.T) {
	t.Run("will round trip through json", func(t *testing.T) {
		n := &Notification{
			Title:    "Meeting",
			Body:     "in 5 minutes",
			Icon:     "calendar",
			Category: "im.received",
			Priority: PriorityUrgent,
		}
		n.SetDefaultActionAndTarget("app.open", variant.NewTuple(variant.NewInt32(1), variant.NewString("a b")))
		n.AddButtonWithTarget("Snooze", "app.snooze", variant.NewUint32(5))

		b, err := json.Marshal(n)
		require.NoError(t, err)

		var got Notification
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, n.Title, got.Title)
		require.Equal(t, n.Body, got.Body)
		require.Equal(t, n.Icon, got.Icon)
		require.Equal(t, n.Category, got.Category)
		require.Equal(t, n.Priority, got.Priority)
		require.Equal(t, n.DefaultAction, got.DefaultAction)
		require.True(t, n.DefaultActionTarget.Equal(got.DefaultActionTarget))
		require.Len(t, got.Buttons, 1)
		require.True(t, n.Buttons[0].Target.Equal(got.Buttons[0].Target))
	})

	t.Run("will return an error", func(t *testing.T) {
		testCases := []struct {
			Name string
			JSON string
		}{
			{Name: "if the priority is unknown", JSON: `{"priority":"critical"}`},
			{Name: "if the default action is malformed", JSON: `{"priority":"low","default_action":"app open"}`},
			{Name: "if a button action is malformed", JSON: `{"priority":"low","buttons":[{"label":"x","action":"app.x("}]}`},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				var n Notification
				require.Error(t, json.Unmarshal([]byte(testCase.JSON), &n))
			})
		}
	})
}
