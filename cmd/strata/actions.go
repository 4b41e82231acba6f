// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/variant"

	"github.com/spf13/cobra"
)

// InvalidActionNameError is returned for a malformed action name argument.
type InvalidActionNameError struct {
	Name string
}

// Error implements the error interface.
func (e InvalidActionNameError) Error() string {
	return fmt.Sprintf("invalid action name: %q", e.Name)
}

// InvalidParameterError is returned if the action parameter is not a
// valid variant in text form.
type InvalidParameterError struct {
	Text  string
	Cause error
}

// Error implements the error interface.
func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid action parameter %q: %s", e.Text, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidParameterError) Unwrap() error {
	return e.Cause
}

func listActionsCmd(o *rootOptions) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "list-actions APPID",
		Short: "List the actions exported by an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := o.dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Unref()

			names, err := c.List(ctx)
			if err != nil {
				return err
			}
			slices.Sort(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				if !long {
					fmt.Fprintln(out, name)
					continue
				}

				info, ok, err := c.Describe(ctx, name)
				if err != nil {
					return err
				}
				if !ok {
					// removed since it was listed
					continue
				}
				fmt.Fprintln(out, describe(name, info))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "include parameter type, state and enabled flag")
	return cmd
}

func describe(name string, info action.Info) string {
	var sb strings.Builder
	sb.WriteString(name)
	if !info.ParameterType.IsZero() {
		fmt.Fprintf(&sb, " parameter=%s", info.ParameterType)
	}
	if info.State.IsValid() {
		fmt.Fprintf(&sb, " state=%s", info.State.Print(true))
	}
	if !info.Enabled {
		sb.WriteString(" disabled")
	}
	return sb.String()
}

func actionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "action APPID ACTION [PARAMETER]",
		Short: "Activate an action of an application",
		Long: `Activate an action of an application.

PARAMETER is given in variant text form, e.g. 'hello', 42 or (1, true).`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name := args[1]
			if !action.NameIsValid(name) {
				return InvalidActionNameError{Name: name}
			}

			var parameter variant.Variant
			if len(args) == 3 {
				v, err := variant.Parse(nil, args[2])
				if err != nil {
					return InvalidParameterError{Text: args[2], Cause: err}
				}
				parameter = v
			}

			c, err := o.dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Unref()

			return c.Invoke(ctx, name, parameter, o.platformData())
		},
	}
}
