// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/z5labs/strata/bus"
	"github.com/z5labs/strata/internal/fixedpool"
	"github.com/z5labs/strata/internal/try"
	"github.com/z5labs/strata/lifecycle"
	"github.com/z5labs/strata/pkg/slogfield"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// appIDFlag overrides the application id on the command line of
// applications with CanOverrideAppID.
const appIDFlag = "--app-id"

// Run registers the application, handles args and runs until the
// application is released or quits. args[0] is the program name, as
// in os.Args.
//
// Without HandlesCommandLine the application is activated if args
// holds no further arguments, otherwise the arguments are opened as
// files. With HandlesCommandLine the command-line signal decides the
// exit status. Cancelling ctx quits the application.
//
// The primary instance emits the shutdown signal before Run gives the
// application id up and returns. A panic in a handler is returned as
// try.PanicError.
func (a *Application) Run(ctx context.Context, args []string) (status int, err error) {
	if a.running {
		a.log.ErrorContext(ctx, "application is already running", slogfield.AppID(a.id))
		return 1, ErrRunning
	}

	a.own()
	defer a.disown()

	a.running = true
	defer func() {
		a.running = false
		a.mustQuit = false
	}()

	ctx = lifecycle.NewContext(ctx, &a.lc)
	ctx, span := a.tracer.Start(ctx, "Application.Run", trace.WithAttributes(
		attribute.String("application.id", a.id),
		attribute.StringSlice("application.args", args),
	))
	defer span.End()

	defer func() {
		if err != nil {
			status = 1
			recordError(span, "application failed", err)
		}
	}()
	defer func() {
		// a handler panicked before the id was given up
		if reg := a.detach(); reg != nil {
			err = errors.Join(err, reg.Release(context.WithoutCancel(ctx)))
		}
	}()
	defer try.Recover(&err)

	status, err = a.localCommandLine(ctx, args)
	if err != nil {
		a.log.ErrorContext(ctx, "failed to register application", slogfield.Error(err))
		return 1, err
	}

	if a.flags&IsService != 0 && !a.IsRemote() && a.useCount == 0 && a.inactivity == nil {
		a.inactivity = time.NewTimer(serviceInactivityTimeout)
	}

	for (a.useCount > 0 || a.inactivity != nil) && !a.mustQuit {
		a.iterate(ctx)
		status = 0
	}

	if a.registered && !a.IsRemote() {
		a.emitShutdown()
	}

	// requests of remote instances may still be waiting on Invoke while
	// the id is given up
	release := releaseTask(a.detach())
	a.disown()
	err = fixedpool.Wait(context.WithoutCancel(ctx), release, a.lc.PostRun().Run)
	a.own()
	return status, err
}

func releaseTask(reg *bus.Registration) fixedpool.Task {
	return func(ctx context.Context) error {
		if reg == nil {
			return nil
		}
		return reg.Release(ctx)
	}
}

// iterate waits for the next event with the application disowned, so
// Invoke can run in the meantime.
func (a *Application) iterate(ctx context.Context) {
	inactivity := a.inactivity
	var expired <-chan time.Time
	if inactivity != nil {
		expired = inactivity.C
	}

	a.disown()
	select {
	case <-ctx.Done():
		a.own()
		a.log.InfoContext(ctx, "quitting application", slogfield.AppID(a.id), slogfield.Error(context.Cause(ctx)))
		a.mustQuit = true
	case <-a.wake:
		a.own()
	case <-expired:
		a.own()
		if a.inactivity == inactivity {
			a.log.DebugContext(ctx, "application inactivity timeout expired", slogfield.AppID(a.id))
			a.inactivity = nil
		}
	}
}

func (a *Application) localCommandLine(ctx context.Context, args []string) (int, error) {
	if a.flags&CanOverrideAppID != 0 {
		var (
			id string
			ok bool
		)
		args, id, ok = extractAppID(args)
		if ok {
			err := a.SetID(id)
			if err != nil {
				return 1, err
			}
		}
	}

	err := a.Register(ctx)
	if err != nil {
		return 1, err
	}

	switch {
	case a.flags&IsService != 0:
		if len(args) > 1 {
			a.log.ErrorContext(ctx, "service does not accept arguments", slogfield.Strings("args", args[1:]))
			return 1, nil
		}
		return 0, nil
	case a.flags&HandlesCommandLine != 0:
		return a.CommandLine(ctx, args), nil
	case len(args) <= 1:
		a.Activate(ctx)
		return 0, nil
	case a.flags&HandlesOpen == 0:
		a.log.ErrorContext(ctx, "application does not open files", slogfield.Strings("args", args[1:]))
		return 1, nil
	default:
		a.Open(ctx, args[1:], "")
		return 0, nil
	}
}

// extractAppID removes the app id flag from args. Both "--app-id ID"
// and "--app-id=ID" are accepted.
func extractAppID(args []string) ([]string, string, bool) {
	for i, arg := range args {
		if i == 0 {
			continue
		}
		if arg == appIDFlag && i+1 < len(args) {
			rest := append(args[:i:i], args[i+2:]...)
			return rest, args[i+1], true
		}
		if id, ok := strings.CutPrefix(arg, appIDFlag+"="); ok {
			rest := append(args[:i:i], args[i+1:]...)
			return rest, id, true
		}
	}
	return args, "", false
}

// Activate activates the application. A remote instance forwards the
// request to the primary instance.
func (a *Application) Activate(ctx context.Context) {
	if !a.registered {
		a.log.ErrorContext(ctx, "application must be registered before it is activated", slogfield.AppID(a.id))
		return
	}

	ctx, span := a.tracer.Start(ctx, "Application.Activate")
	defer span.End()

	if !a.IsRemote() {
		a.emitActivate()
		return
	}

	err := a.reg.Remote().Activate(ctx, a.PlatformData())
	if err != nil {
		recordError(span, "failed to activate primary instance", err)
		a.log.ErrorContext(ctx, "failed to activate primary instance", slogfield.AppID(a.id), slogfield.Error(err))
	}
}

// Open asks the application to open files. hint is passed to the
// open signal as is. The application must have HandlesOpen.
func (a *Application) Open(ctx context.Context, files []string, hint string) {
	switch {
	case a.flags&HandlesOpen == 0:
		a.log.ErrorContext(ctx, "application does not open files", slogfield.AppID(a.id))
		return
	case !a.registered:
		a.log.ErrorContext(ctx, "application must be registered before it opens files", slogfield.AppID(a.id))
		return
	case len(files) == 0:
		a.log.ErrorContext(ctx, "no files to open", slogfield.AppID(a.id))
		return
	}

	ctx, span := a.tracer.Start(ctx, "Application.Open", trace.WithAttributes(
		attribute.StringSlice("application.files", files),
	))
	defer span.End()

	if !a.IsRemote() {
		a.emitOpen(files, hint)
		return
	}

	err := a.reg.Remote().Open(ctx, files, hint, a.PlatformData())
	if err != nil {
		recordError(span, "failed to open files in primary instance", err)
		a.log.ErrorContext(ctx, "failed to open files in primary instance", slogfield.AppID(a.id), slogfield.Error(err))
	}
}

// CommandLine handles args in the primary instance and returns the
// exit status decided by the command-line signal. A failure to reach
// the primary instance results in exit status 1.
func (a *Application) CommandLine(ctx context.Context, args []string) int {
	if !a.registered {
		a.log.ErrorContext(ctx, "application must be registered before it handles a command line", slogfield.AppID(a.id))
		return 1
	}

	ctx, span := a.tracer.Start(ctx, "Application.CommandLine")
	defer span.End()

	platformData := a.PlatformData()
	if !a.IsRemote() {
		return a.emitCommandLine(args, platformData)
	}

	status, err := a.reg.Remote().CommandLine(ctx, args, platformData)
	if err != nil {
		recordError(span, "failed to forward command line to primary instance", err)
		a.log.ErrorContext(ctx, "failed to forward command line to primary instance", slogfield.AppID(a.id), slogfield.Error(err))
		return 1
	}
	span.SetAttributes(attribute.Int("application.exit_status", status))
	return status
}

func recordError(span trace.Span, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
