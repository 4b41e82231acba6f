// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

func launchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "launch APPID [FILE...]",
		Short: "Activate an application or open files with it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files := make([]string, 0, len(args)-1)
			for _, arg := range args[1:] {
				path, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				files = append(files, path)
			}

			c, err := o.dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Unref()

			if len(files) == 0 {
				return c.Activate(ctx, o.platformData())
			}
			return c.Open(ctx, files, "", o.platformData())
		},
	}
}
