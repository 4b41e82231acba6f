// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/strata/variant"
)

func ExampleParseDetailedName() {
	name, target, err := ParseDetailedName("app.open((1,2,3))")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(name)
	fmt.Println(target.Type())
	fmt.Println(PrintDetailedName(name, target))
	// Output: app.open
	// (iii)
	// app.open((1, 2, 3))
}

func TestNameIsValid(t *testing.T) {
	testCases := []struct {
		name  string
		valid bool
	}{
		{name: "quit", valid: true},
		{name: "app.quit", valid: true},
		{name: "print-string", valid: true},
		{name: "Zoom2", valid: true},
		{name: "", valid: false},
		{name: "app quit", valid: false},
		{name: "app_quit", valid: false},
		{name: "app::quit", valid: false},
		{name: "open(", valid: false},
		{name: "späť", valid: false},
	}

	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("will return %v for %q", testCase.valid, testCase.name), func(t *testing.T) {
			require.Equal(t, testCase.valid, NameIsValid(testCase.name))
		})
	}
}

func TestParseDetailedName(t *testing.T) {
	t.Run("will return the name and target", func(t *testing.T) {
		testCases := []struct {
			Name         string
			DetailedName string
			Action       string
			Target       variant.Variant
		}{
			{
				Name:         "if there is no target",
				DetailedName: "app.quit",
				Action:       "app.quit",
			},
			{
				Name:         "if the target is a string token",
				DetailedName: "app.say::hello",
				Action:       "app.say",
				Target:       variant.NewString("hello"),
			},
			{
				Name:         "if the target is a tuple",
				DetailedName: "app.open((1,2,3))",
				Action:       "app.open",
				Target:       variant.NewTuple(variant.NewInt32(1), variant.NewInt32(2), variant.NewInt32(3)),
			},
			{
				Name:         "if the target is a quoted string",
				DetailedName: "app.say('hello world')",
				Action:       "app.say",
				Target:       variant.NewString("hello world"),
			},
			{
				Name:         "if the target is an annotated integer",
				DetailedName: "win.zoom(uint32 3)",
				Action:       "win.zoom",
				Target:       variant.NewUint32(3),
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				name, target, err := ParseDetailedName(testCase.DetailedName)
				require.NoError(t, err)
				require.Equal(t, testCase.Action, name)
				require.True(t, testCase.Target.Equal(target), "got %s", target.Print(true))
			})
		}
	})

	t.Run("will return a ParseDetailedNameError", func(t *testing.T) {
		testCases := []struct {
			Name         string
			DetailedName string
		}{
			{Name: "if the detailed name is empty", DetailedName: ""},
			{Name: "if the name contains a space", DetailedName: "app quit"},
			{Name: "if the name is empty", DetailedName: "::x"},
			{Name: "if there is a single colon", DetailedName: "app:x"},
			{Name: "if the string target is empty", DetailedName: "app.say::"},
			{Name: "if the string target is not a valid name", DetailedName: "app.say::a b"},
			{Name: "if the closing parenthesis is missing", DetailedName: "app.open((1,2)"},
			{Name: "if the target does not parse", DetailedName: "app.open(1,)"},
			{Name: "if a closing parenthesis comes first", DetailedName: "app)"},
			{Name: "if the name is followed by text after the target", DetailedName: "app.open(1)x"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, _, err := ParseDetailedName(testCase.DetailedName)

				var perr ParseDetailedNameError
				require.ErrorAs(t, err, &perr)
				require.Equal(t, testCase.DetailedName, perr.DetailedName)
				require.Error(t, errors.Unwrap(err))
			})
		}
	})

	t.Run("will wrap the variant parse error", func(t *testing.T) {
		t.Run("if the target is malformed", func(t *testing.T) {
			_, _, err := ParseDetailedName("app.open([1,'a'])")

			var verr variant.ParseError
			require.ErrorAs(t, err, &verr)
		})
	})
}

func TestPrintDetailedName(t *testing.T) {
	t.Run("will round trip through ParseDetailedName", func(t *testing.T) {
		targets := []variant.Variant{
			{},
			variant.NewString("hello"),
			variant.NewString("hello world"),
			variant.NewString(""),
			variant.NewString("it's"),
			variant.NewBool(true),
			variant.NewInt32(-7),
			variant.NewUint64(1 << 40),
			variant.NewDouble(2.5),
			variant.NewByte(7),
			variant.NewTuple(variant.NewInt32(1), variant.NewInt32(2), variant.NewInt32(3)),
			variant.NewStrings("a", "b"),
			variant.NewVardict(map[string]variant.Variant{"x": variant.NewInt32(1)}),
			variant.NewMaybe(variant.TypeString, nil),
		}

		for _, name := range []string{"quit", "app.open", "win.zoom-in"} {
			for _, target := range targets {
				printed := PrintDetailedName(name, target)
				t.Run(printed, func(t *testing.T) {
					gotName, gotTarget, err := ParseDetailedName(printed)
					require.NoError(t, err)
					require.Equal(t, name, gotName)
					require.True(t, target.Equal(gotTarget), "got %s", gotTarget.Print(true))
				})
			}
		}
	})

	t.Run("will use the string token form", func(t *testing.T) {
		t.Run("if the target is a string which is a valid name", func(t *testing.T) {
			require.Equal(t, "app.say::hello", PrintDetailedName("app.say", variant.NewString("hello")))
		})
	})

	t.Run("will use the parenthesised form", func(t *testing.T) {
		t.Run("if the target is a string which is not a valid name", func(t *testing.T) {
			require.Equal(t, "app.say('a b')", PrintDetailedName("app.say", variant.NewString("a b")))
		})
	})
}
