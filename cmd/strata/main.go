// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command strata talks to the primary instance of an application which
// exports itself over HTTP, e.g.
//
//	strata list-actions org.example.Editor
//	strata action org.example.Editor zoom 150
//	strata launch org.example.Editor notes.txt
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	os.Exit(run(os.Args[1:]...))
}

func run(args ...string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := buildCmd(os.Environ)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "strata:", err)
		return 1
	}
	return 0
}
