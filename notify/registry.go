// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/z5labs/strata/config"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"

	"golang.org/x/sync/errgroup"
)

// EnvBackend names the environment variable which selects a backend by name.
const EnvBackend = "NOTIFICATION_BACKEND"

// Backend delivers notifications. Implementations are used from a
// single goroutine at a time.
type Backend interface {
	Send(ctx context.Context, id string, n *Notification) error
	Withdraw(ctx context.Context, id string) error
}

// Factory constructs a Backend.
type Factory struct {
	// Name must be unique within a Registry.
	Name string

	// Higher priorities are tried first.
	Priority int

	// IsSupported reports whether the backend can work in the current
	// environment. A nil IsSupported is always supported.
	IsSupported func(ctx context.Context) bool

	New func(ctx context.Context, appID string) (Backend, error)
}

func (f Factory) supported(ctx context.Context) bool {
	if f.IsSupported == nil {
		return true
	}
	return f.IsSupported(ctx)
}

// InvalidFactoryError is returned when registering a Factory without
// a name or constructor.
type InvalidFactoryError struct {
	Name string
}

// Error implements the error interface.
func (e InvalidFactoryError) Error() string {
	return fmt.Sprintf("notification backend factory must have a name and constructor: %q", e.Name)
}

// DuplicateFactoryError is returned when a name is registered twice.
type DuplicateFactoryError struct {
	Name string
}

// Error implements the error interface.
func (e DuplicateFactoryError) Error() string {
	return fmt.Sprintf("notification backend factory already registered: %q", e.Name)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// LogHandler sets the handler used by the Registry, the fallback log
// backend and every Dispatcher selected from the Registry.
func LogHandler(h slog.Handler) RegistryOption {
	return func(r *Registry) {
		r.logHandler = h
	}
}

// ConfigSource sets where EnvBackend is read from. It defaults to
// config.FromEnv().
func ConfigSource(src config.Source) RegistryOption {
	return func(r *Registry) {
		r.src = src
	}
}

// Registry is an ordered set of backend factories. A new Registry
// always contains the "log" fallback backend.
type Registry struct {
	logHandler slog.Handler
	log        *slog.Logger
	src        config.Source

	mu        sync.Mutex
	factories []Factory
}

// NewRegistry returns a Registry with only the fallback backend.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logHandler: noop.LogHandler{},
		src:        config.FromEnv(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = otelslog.New(r.logHandler)
	r.factories = append(r.factories, logFactory(r.logHandler))
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process wide Registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds f to the process wide Registry.
func Register(f Factory) error {
	return defaultRegistry.Register(f)
}

// Factories lists the factories of the process wide Registry.
func Factories() []Factory {
	return defaultRegistry.Factories()
}

// Register adds f. Factories with equal priority keep their
// registration order.
func (r *Registry) Register(f Factory) error {
	if f.Name == "" || f.New == nil {
		return InvalidFactoryError{Name: f.Name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.factories, func(g Factory) bool { return g.Name == f.Name }) {
		return DuplicateFactoryError{Name: f.Name}
	}

	// insert after every factory with priority >= f.Priority
	i := len(r.factories)
	for i > 0 && r.factories[i-1].Priority < f.Priority {
		i--
	}
	r.factories = slices.Insert(r.factories, i, f)
	return nil
}

// Factories returns the factories in selection order.
func (r *Registry) Factories() []Factory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.factories)
}

// Lookup finds a factory by name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.factories, func(f Factory) bool { return f.Name == name })
	if i < 0 {
		return Factory{}, false
	}
	return r.factories[i], true
}

// Probe runs every IsSupported check concurrently. The result is
// indexed like factories.
func Probe(ctx context.Context, factories []Factory) []bool {
	supported := make([]bool, len(factories))

	var eg errgroup.Group
	for i, f := range factories {
		eg.Go(func() error {
			supported[i] = f.supported(ctx)
			return nil
		})
	}
	eg.Wait()
	return supported
}

type backendConfig struct {
	Backend string `config:"notification_backend"`
}

func (r *Registry) requestedBackend() string {
	m, err := config.Read(r.src)
	if err != nil {
		r.log.Warn("failed to read notification backend config", slogfield.Error(err))
		return ""
	}

	var cfg backendConfig
	err = m.Unmarshal(&cfg)
	if err != nil {
		r.log.Warn("failed to decode notification backend config", slogfield.Error(err))
		return ""
	}
	return cfg.Backend
}

// Select constructs the backend for appID.
//
// The factory named by EnvBackend is used if it is supported.
// Otherwise the first supported factory in priority order is used.
// A factory whose constructor fails is skipped, so the fallback
// backend is always reached.
func (r *Registry) Select(ctx context.Context, appID string) *Dispatcher {
	if name := r.requestedBackend(); name != "" {
		f, ok := r.Lookup(name)
		switch {
		case !ok:
			r.log.WarnContext(ctx, "requested notification backend is not registered", slogfield.Backend(name))
		case !f.supported(ctx):
			r.log.WarnContext(ctx, "requested notification backend is not supported", slogfield.Backend(name))
		default:
			if d := r.construct(ctx, f, appID); d != nil {
				return d
			}
		}
	}

	factories := r.Factories()
	supported := Probe(ctx, factories)
	for i, f := range factories {
		if !supported[i] {
			continue
		}
		if d := r.construct(ctx, f, appID); d != nil {
			return d
		}
	}

	// the fallback never fails to construct
	return r.construct(ctx, logFactory(r.logHandler), appID)
}

func (r *Registry) construct(ctx context.Context, f Factory, appID string) *Dispatcher {
	b, err := f.New(ctx, appID)
	if err != nil {
		r.log.ErrorContext(
			ctx,
			"failed to construct notification backend",
			slogfield.Backend(f.Name),
			slogfield.Error(err),
		)
		return nil
	}
	r.log.DebugContext(ctx, "selected notification backend", slogfield.Backend(f.Name), slogfield.AppID(appID))
	return newDispatcher(f.Name, b, r.log)
}

// fallbackPriority sorts the fallback after every other factory.
const fallbackPriority = math.MinInt32

func logFactory(h slog.Handler) Factory {
	return Factory{
		Name:     "log",
		Priority: fallbackPriority,
		New: func(_ context.Context, appID string) (Backend, error) {
			return &logBackend{
				log: otelslog.New(h).With(slogfield.AppID(appID)),
			}, nil
		},
	}
}
