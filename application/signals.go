// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"context"

	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/signal"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// Signals of an Application. They are registered when the package is
// initialised.
var (
	// StartupSignal is emitted on the primary instance once it is
	// registered.
	StartupSignal signal.ID

	// ShutdownSignal is emitted on the primary instance before Run
	// returns.
	ShutdownSignal signal.ID

	// ActivateSignal is emitted when the application is activated
	// without files or arguments.
	ActivateSignal signal.ID

	// OpenSignal is emitted with the files ("as") and a hint ("s")
	// when the application is asked to open files.
	OpenSignal signal.ID

	// CommandLineSignal is emitted with the arguments ("as") and the
	// platform data ("a{sv}") of an invocation. The first closure to
	// return decides the exit status.
	CommandLineSignal signal.ID

	// NameLostSignal is emitted once another instance took the
	// application id over. Returning true stops the default handler,
	// which quits the application.
	NameLostSignal signal.ID
)

func init() {
	StartupSignal = signal.New(
		"startup",
		TypeApplication,
		signal.RunFirst,
		value.None,
		nil,
	)
	ShutdownSignal = signal.New(
		"shutdown",
		TypeApplication,
		signal.RunLast,
		value.None,
		nil,
	)
	ActivateSignal = signal.New(
		"activate",
		TypeApplication,
		signal.RunLast,
		value.None,
		nil,
		signal.ClassClosure(signal.NewClosure(func(inst value.Instance) {
			inst.(*Application).defaultActivate()
		})),
	)
	OpenSignal = signal.New(
		"open",
		TypeApplication,
		signal.RunLast,
		value.None,
		[]value.Type{value.VariantType, value.String},
		signal.ClassClosure(signal.NewClosure(func(inst value.Instance, _ variant.Variant, _ string) {
			inst.(*Application).defaultOpen()
		})),
	)
	CommandLineSignal = signal.New(
		"command-line",
		TypeApplication,
		signal.RunLast,
		value.Int,
		[]value.Type{value.VariantType, value.VariantType},
		signal.WithAccumulator(signal.AccumulatorFirstWins),
		signal.ClassClosure(signal.NewClosure(func(inst value.Instance, _, _ variant.Variant) int {
			return inst.(*Application).defaultCommandLine()
		})),
	)
	NameLostSignal = signal.New(
		"name-lost",
		TypeApplication,
		signal.RunLast,
		value.Boolean,
		nil,
		signal.WithAccumulator(signal.AccumulatorTrueHandled),
		signal.ClassClosure(signal.NewClosure(func(inst value.Instance) bool {
			inst.(*Application).Quit()
			return true
		})),
	)
}

func (a *Application) defaultActivate() {
	if signal.HasHandlerPending(a, ActivateSignal, 0, true) {
		return
	}
	a.warnActivate.Do(func() {
		a.log.Warn(
			"application has no handler for the activate signal",
			slogfield.AppID(a.id),
		)
	})
}

func (a *Application) defaultOpen() {
	if signal.HasHandlerPending(a, OpenSignal, 0, true) {
		return
	}
	a.warnOpen.Do(func() {
		a.log.Warn(
			"application handles open but has no handler for the open signal",
			slogfield.AppID(a.id),
		)
	})
}

func (a *Application) defaultCommandLine() int {
	a.warnCommandLine.Do(func() {
		a.log.Warn(
			"application handles the command line but has no handler for the command-line signal",
			slogfield.AppID(a.id),
		)
	})
	return 1
}

// OnStartup connects fn to StartupSignal.
func (a *Application) OnStartup(fn func(a *Application)) signal.HandlerID {
	return signal.Connect(a, "startup", func(value.Instance) {
		fn(a)
	})
}

// OnShutdown connects fn to ShutdownSignal.
func (a *Application) OnShutdown(fn func(a *Application)) signal.HandlerID {
	return signal.Connect(a, "shutdown", func(value.Instance) {
		fn(a)
	})
}

// OnActivate connects fn to ActivateSignal.
func (a *Application) OnActivate(fn func(a *Application)) signal.HandlerID {
	return signal.Connect(a, "activate", func(value.Instance) {
		fn(a)
	})
}

// OnOpen connects fn to OpenSignal.
func (a *Application) OnOpen(fn func(a *Application, files []string, hint string)) signal.HandlerID {
	return signal.Connect(a, "open", func(_ value.Instance, files variant.Variant, hint string) {
		fn(a, files.Strs(), hint)
	})
}

// OnCommandLine connects fn to CommandLineSignal. The returned int is
// the exit status.
func (a *Application) OnCommandLine(fn func(a *Application, args []string, platformData variant.Variant) int) signal.HandlerID {
	return signal.Connect(a, "command-line", func(_ value.Instance, args, platformData variant.Variant) int {
		return fn(a, args.Strs(), platformData)
	})
}

// OnNameLost connects fn to NameLostSignal.
func (a *Application) OnNameLost(fn func(a *Application) bool) signal.HandlerID {
	return signal.Connect(a, "name-lost", func(value.Instance) bool {
		return fn(a)
	})
}

func (a *Application) emitStartup() {
	signal.Emit(a, StartupSignal, 0)
}

func (a *Application) emitShutdown() {
	signal.Emit(a, ShutdownSignal, 0)
}

func (a *Application) emitActivate() {
	signal.Emit(a, ActivateSignal, 0)
}

func (a *Application) emitOpen(files []string, hint string) {
	signal.Emit(a, OpenSignal, 0, variant.NewStrings(files...), hint)
}

func (a *Application) emitCommandLine(args []string, platformData variant.Variant) int {
	ret := signal.Emit(a, CommandLineSignal, 0, variant.NewStrings(args...), platformData)
	defer ret.Unset()
	return ret.Int()
}

func (a *Application) emitNameLost() bool {
	ret := signal.Emit(a, NameLostSignal, 0)
	defer ret.Unset()
	return ret.Bool()
}

// activator handles the requests of remote instances. The bus runs
// its methods through Application.Invoke.
type activator struct {
	a *Application
}

func (r activator) Activate(ctx context.Context, platformData variant.Variant) {
	_, span := r.a.tracer.Start(ctx, "Application.RemoteActivate")
	defer span.End()

	r.a.beforeEmit(platformData)
	r.a.emitActivate()
	r.a.afterEmit(platformData)
}

func (r activator) Open(ctx context.Context, files []string, hint string, platformData variant.Variant) {
	_, span := r.a.tracer.Start(ctx, "Application.RemoteOpen")
	defer span.End()

	r.a.beforeEmit(platformData)
	r.a.emitOpen(files, hint)
	r.a.afterEmit(platformData)
}

func (r activator) CommandLine(ctx context.Context, args []string, platformData variant.Variant) int {
	_, span := r.a.tracer.Start(ctx, "Application.RemoteCommandLine")
	defer span.End()

	r.a.beforeEmit(platformData)
	status := r.a.emitCommandLine(args, platformData)
	r.a.afterEmit(platformData)
	return status
}
