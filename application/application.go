// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package application provides the entry point of single instance
// applications.
//
// An [Application] claims its id on a [bus.Bus] when it is registered.
// The first instance to do so becomes the primary instance. Every later
// instance is a remote instance: activating it forwards the request,
// together with its platform data, to the primary instance and returns.
//
// An Application is not safe for concurrent use. Its methods must be
// called from the goroutine which runs it. Other goroutines hand work
// to that goroutine with [Application.Invoke].
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/bus"
	"github.com/z5labs/strata/lifecycle"
	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TypeApplication is the instance type of [Application].
var TypeApplication = value.Register(value.Object, "Application", nil)

func init() {
	value.AddInterface(TypeApplication, action.TypeGroup)
	value.AddInterface(TypeApplication, action.TypeMap)
}

// serviceInactivityTimeout is how long a service waits for its first
// request before exiting.
const serviceInactivityTimeout = 10 * time.Second

// maxIDLength is the maximum length of an application id in bytes.
const maxIDLength = 255

// IDIsValid reports whether id is a valid application id.
//
// An id consists of at least two non-empty elements separated by
// periods. Elements only contain ASCII letters, digits, underscores
// and hyphens and do not start with a digit. The id is at most 255
// bytes long.
func IDIsValid(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}

	elements := strings.Split(id, ".")
	if len(elements) < 2 {
		return false
	}
	for _, elem := range elements {
		if !elementIsValid(elem) {
			return false
		}
	}
	return true
}

func elementIsValid(elem string) bool {
	if elem == "" || isDigit(elem[0]) {
		return false
	}
	for i := 0; i < len(elem); i++ {
		c := elem[i]
		if !isAlpha(c) && !isDigit(c) && c != '_' && c != '-' {
			return false
		}
	}
	return true
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// InvalidIDError is returned for an application id which does not
// pass IDIsValid.
type InvalidIDError struct {
	ID string
}

// Error implements the error interface.
func (e InvalidIDError) Error() string {
	return fmt.Sprintf("invalid application id: %q", e.ID)
}

// RegistrationError is returned when an Application fails to claim
// its id.
type RegistrationError struct {
	AppID string
	Cause error
}

// Error implements the error interface.
func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to register application %q: %s", e.AppID, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ErrRunning is returned by Run if the Application is already running.
var ErrRunning = errors.New("application: already running")

type options struct {
	logHandler        slog.Handler
	bus               bus.Bus
	registry          *notify.Registry
	inactivityTimeout time.Duration
	hooks             action.PlatformHooks
	getwd             func() (string, error)
	environ           func() []string
}

// Option configures an Application.
type Option func(*options)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Bus sets the bus the application id is claimed on. It defaults to
// bus.Session().
func Bus(b bus.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// NotificationRegistry sets the registry the notification backend is
// selected from. It defaults to notify.Default().
func NotificationRegistry(r *notify.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// InactivityTimeout keeps the primary instance running for d after
// the last Release.
func InactivityTimeout(d time.Duration) Option {
	return func(o *options) {
		o.inactivityTimeout = d
	}
}

// BeforeEmit is called with the platform data of a request from a
// remote instance before the request is handled.
func BeforeEmit(f func(platformData variant.Variant)) Option {
	return func(o *options) {
		o.hooks.BeforeEmit = f
	}
}

// AfterEmit is called with the platform data of a request from a
// remote instance after the request has been handled.
func AfterEmit(f func(platformData variant.Variant)) Option {
	return func(o *options) {
		o.hooks.AfterEmit = f
	}
}

// Getwd sets how the working directory reported in platform data is
// found. It defaults to os.Getwd.
func Getwd(f func() (string, error)) Option {
	return func(o *options) {
		o.getwd = f
	}
}

// Environ sets how the environment reported in platform data is found.
// It defaults to os.Environ.
func Environ(f func() []string) Option {
	return func(o *options) {
		o.environ = f
	}
}

// Application is a single instance application. It is an action.Group
// and action.Map over the actions it exports to remote instances.
type Application struct {
	action.GroupBase

	log    *slog.Logger
	tracer trace.Tracer

	id                string
	flags             Flags
	inactivityTimeout time.Duration
	bus               bus.Bus
	registry          *notify.Registry
	hooks             action.PlatformHooks
	getwd             func() (string, error)
	environ           func() []string

	exported *action.ExportedGroup

	// owner is held by the goroutine operating the application.
	owner chan struct{}
	wake  chan struct{}

	reg           *bus.Registration
	remoteActions action.RemoteGroup
	registered    bool
	running       bool
	mustQuit      bool
	useCount      int
	busyCount     int
	inactivity    *time.Timer

	notifier *notify.Dispatcher
	lc       lifecycle.Context

	warnActivate    sync.Once
	warnOpen        sync.Once
	warnCommandLine sync.Once
}

// New returns an unregistered Application. An empty id is allowed and
// implies NonUnique.
func New(id string, flags Flags, opts ...Option) (*Application, error) {
	if id != "" && !IDIsValid(id) {
		return nil, InvalidIDError{ID: id}
	}

	o := &options{
		logHandler: noop.LogHandler{},
		getwd:      os.Getwd,
		environ:    os.Environ,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.bus == nil {
		o.bus = bus.Session()
	}
	if o.registry == nil {
		o.registry = notify.Default()
	}

	a := &Application{
		log:               otelslog.New(o.logHandler),
		tracer:            otel.Tracer("application"),
		id:                id,
		flags:             flags,
		inactivityTimeout: o.inactivityTimeout,
		bus:               o.bus,
		registry:          o.registry,
		hooks:             o.hooks,
		getwd:             o.getwd,
		environ:           o.environ,
		owner:             make(chan struct{}, 1),
		wake:              make(chan struct{}, 1),
	}
	a.Init(TypeApplication, a)
	a.exported = action.NewExportedGroup(action.PlatformHooks{
		BeforeEmit: a.beforeEmit,
		AfterEmit:  a.afterEmit,
	})
	a.forwardGroupSignals()
	return a, nil
}

// ID returns the application id.
func (a *Application) ID() string {
	return a.id
}

// SetID changes the application id. It is only allowed before the
// application is registered.
func (a *Application) SetID(id string) error {
	if a.registered {
		a.log.Error("application id can not change once registered", slogfield.AppID(a.id))
		return nil
	}
	if id != "" && !IDIsValid(id) {
		return InvalidIDError{ID: id}
	}
	if a.id != id {
		a.id = id
		a.Notify("application-id")
	}
	return nil
}

// Flags returns the flags of the application.
func (a *Application) Flags() Flags {
	return a.flags
}

// SetFlags replaces the flags. It is only allowed before the
// application is registered.
func (a *Application) SetFlags(flags Flags) {
	if a.registered {
		a.log.Error("application flags can not change once registered", slogfield.AppID(a.id))
		return
	}
	if a.flags != flags {
		a.flags = flags
		a.Notify("flags")
	}
}

// InactivityTimeout returns how long the primary instance keeps
// running after the last Release.
func (a *Application) InactivityTimeout() time.Duration {
	return a.inactivityTimeout
}

// SetInactivityTimeout changes the inactivity timeout.
func (a *Application) SetInactivityTimeout(d time.Duration) {
	if a.inactivityTimeout != d {
		a.inactivityTimeout = d
		a.Notify("inactivity-timeout")
	}
}

// IsRegistered reports whether Register succeeded.
func (a *Application) IsRegistered() bool {
	return a.registered
}

// IsRemote reports whether another instance is the primary instance.
// It is false until the application is registered.
func (a *Application) IsRemote() bool {
	return a.registered && a.reg.IsRemote()
}

// Register claims the application id. It has no effect if the
// application is already registered.
//
// The primary instance emits the startup signal once the id is
// claimed.
func (a *Application) Register(ctx context.Context) error {
	if a.registered {
		return nil
	}

	ctx, span := a.tracer.Start(ctx, "Application.Register")
	defer span.End()

	if a.id == "" {
		a.flags |= NonUnique
	}

	reg, err := a.claim(ctx)
	if err != nil {
		recordError(span, "failed to register application", err)
		return RegistrationError{AppID: a.id, Cause: err}
	}

	a.reg = reg
	a.registered = true
	if reg.IsRemote() {
		a.remoteActions = reg.Remote().Actions()
	}
	a.Notify("is-registered")

	a.log.InfoContext(
		ctx,
		"registered application",
		slogfield.AppID(a.id),
		slogfield.Bool("remote", reg.IsRemote()),
	)
	if !reg.IsRemote() {
		a.emitStartup()
	}
	return nil
}

func (a *Application) claim(ctx context.Context) (*bus.Registration, error) {
	if a.flags&NonUnique != 0 {
		return bus.Primary(nil), nil
	}
	if a.flags&IsLauncher != 0 {
		remote, err := a.bus.Lookup(ctx, a.id)
		if err != nil {
			return nil, err
		}
		return bus.Secondary(remote), nil
	}

	var opts []bus.ClaimOption
	if a.flags&IsService != 0 {
		opts = append(opts, bus.PrimaryOnly())
	}
	if a.flags&Replace != 0 {
		opts = append(opts, bus.Replace())
	}

	target := bus.Target{
		Actions:          a.exported,
		Activator:        activator{a: a},
		AllowReplacement: a.flags&AllowReplacement != 0,
		NameLost:         a.nameLost,
		Invoke:           a.Invoke,
	}
	return a.bus.Claim(ctx, a.id, target, opts...)
}

// Unregister gives the application id up. Run unregisters the
// application once it returns.
func (a *Application) Unregister(ctx context.Context) error {
	reg := a.detach()
	if reg == nil {
		return nil
	}
	return reg.Release(ctx)
}

// detach marks the application unregistered and returns the
// registration to release, or nil if it was not registered.
func (a *Application) detach() *bus.Registration {
	if !a.registered {
		return nil
	}

	reg := a.reg
	a.reg = nil
	a.remoteActions = nil
	a.registered = false
	a.stopInactivityTimer()
	a.Notify("is-registered")
	return reg
}

// nameLost is called by the bus once another instance replaced this one.
func (a *Application) nameLost() {
	err := a.Invoke(context.Background(), func() {
		a.log.Info("application id was taken over by another instance", slogfield.AppID(a.id))
		a.emitNameLost()
	})
	if err != nil {
		a.log.Error("failed to handle loss of application id", slogfield.Error(err))
	}
}

// Hold keeps the primary instance running until the matching Release.
func (a *Application) Hold() {
	a.stopInactivityTimer()
	a.useCount++
}

// Release drops a use added by Hold. Once no use is left the
// application exits, after the inactivity timeout if there is one.
func (a *Application) Release() {
	if a.useCount == 0 {
		a.log.Error("application released more often than held", slogfield.AppID(a.id))
		return
	}

	a.useCount--
	if a.useCount == 0 && a.inactivityTimeout > 0 {
		a.inactivity = time.NewTimer(a.inactivityTimeout)
	}
	a.wakeup()
}

func (a *Application) stopInactivityTimer() {
	if a.inactivity == nil {
		return
	}
	a.inactivity.Stop()
	a.inactivity = nil
}

// Quit makes Run return as soon as possible, regardless of the use
// count. The shutdown signal is still emitted.
func (a *Application) Quit() {
	a.mustQuit = true
	a.wakeup()
}

// MarkBusy tells remote observers that the application is busy until
// the matching UnmarkBusy.
func (a *Application) MarkBusy() {
	a.busyCount++
	if a.busyCount == 1 {
		a.Notify("is-busy")
	}
}

// UnmarkBusy undoes a MarkBusy.
func (a *Application) UnmarkBusy() {
	if a.busyCount == 0 {
		a.log.Error("application unmarked busy more often than marked", slogfield.AppID(a.id))
		return
	}
	a.busyCount--
	if a.busyCount == 0 {
		a.Notify("is-busy")
	}
}

// IsBusy reports whether MarkBusy is in effect.
func (a *Application) IsBusy() bool {
	return a.busyCount > 0
}

// OnPostRun adds a hook which Run executes after the shutdown signal,
// concurrently with giving the application id up. Hooks run in reverse
// order of registration on every later Run, including hooks added
// through lifecycle.FromContext while running.
func (a *Application) OnPostRun(h lifecycle.Hook) {
	a.lc.OnPostRun(h)
}

// Invoke runs f on behalf of the goroutine operating the application.
// If Run is in progress f runs between two iterations of its loop,
// otherwise f runs right away on the calling goroutine.
//
// Invoke must not be called from signal handlers or other code running
// on the goroutine executing Run. That goroutine already operates the
// application, so such code calls f directly. Invoke would wait for
// itself until ctx is done.
func (a *Application) Invoke(ctx context.Context, f func()) error {
	select {
	case a.owner <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer a.wakeup()
	defer a.disown()

	f()
	return nil
}

func (a *Application) own() {
	a.owner <- struct{}{}
}

func (a *Application) disown() {
	<-a.owner
}

func (a *Application) wakeup() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// PlatformData describes the environment of this instance as an
// "a{sv}" dictionary. It holds the working directory under "cwd" and,
// with SendEnvironment, the environment under "environ".
func (a *Application) PlatformData() variant.Variant {
	m := make(map[string]variant.Variant)

	cwd, err := a.getwd()
	if err == nil {
		m["cwd"] = variant.NewString(strings.ToValidUTF8(cwd, "\uFFFD"))
	} else {
		a.log.Warn("failed to get working directory", slogfield.Error(err))
	}
	if a.flags&SendEnvironment != 0 {
		var environ []string
		for _, kv := range a.environ() {
			environ = append(environ, strings.ToValidUTF8(kv, "\uFFFD"))
		}
		m["environ"] = variant.NewStrings(environ...)
	}
	return variant.NewVardict(m)
}

func (a *Application) beforeEmit(platformData variant.Variant) {
	if a.hooks.BeforeEmit != nil {
		a.hooks.BeforeEmit(platformData)
	}
}

func (a *Application) afterEmit(platformData variant.Variant) {
	if a.hooks.AfterEmit != nil {
		a.hooks.AfterEmit(platformData)
	}
}
