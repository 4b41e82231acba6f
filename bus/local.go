// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

type localOptions struct {
	logHandler slog.Handler
}

// LocalOption configures a Local bus.
type LocalOption func(*localOptions)

// LogHandler sets the handler the Local bus logs name changes to.
func LogHandler(h slog.Handler) LocalOption {
	return func(lo *localOptions) {
		lo.logHandler = h
	}
}

type owner struct {
	target Target
}

// Local is a Bus shared by the instances of a single process.
type Local struct {
	log *slog.Logger

	mu     sync.Mutex
	owners map[string]*owner
}

// NewLocal returns a Local bus without any owned names.
func NewLocal(opts ...LocalOption) *Local {
	lo := &localOptions{
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(lo)
	}
	return &Local{
		log:    otelslog.New(lo.logHandler),
		owners: make(map[string]*owner),
	}
}

// Claim implements the [Bus] interface.
func (b *Local) Claim(ctx context.Context, appID string, target Target, opts ...ClaimOption) (*Registration, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}
	co := ApplyClaimOptions(opts...)

	b.mu.Lock()
	cur, taken := b.owners[appID]
	replace := taken && co.Replace && cur.target.AllowReplacement
	if taken && !replace {
		b.mu.Unlock()
		if co.PrimaryOnly {
			return nil, ErrNameTaken
		}
		b.log.DebugContext(ctx, "name owned by another instance", slogfield.AppID(appID))
		return Secondary(localRemote{target: cur.target, log: b.log}), nil
	}

	o := &owner{target: target}
	b.owners[appID] = o
	b.mu.Unlock()

	if replace {
		b.log.InfoContext(ctx, "replaced primary instance", slogfield.AppID(appID))
		if cur.target.NameLost != nil {
			cur.target.NameLost()
		}
	}

	b.log.DebugContext(ctx, "claimed name", slogfield.AppID(appID))
	return Primary(func(ctx context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()

		// the name may have been replaced in the meantime
		if b.owners[appID] == o {
			delete(b.owners, appID)
			b.log.DebugContext(ctx, "released name", slogfield.AppID(appID))
		}
		return nil
	}), nil
}

// Lookup implements the [Bus] interface.
func (b *Local) Lookup(ctx context.Context, appID string) (Remote, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.owners[appID]
	if !ok {
		return nil, ErrNoPrimary
	}
	return localRemote{target: o.target, log: b.log}, nil
}

type localRemote struct {
	target Target
	log    *slog.Logger
}

func (r localRemote) Actions() action.RemoteGroup {
	if r.target.Actions == nil {
		return nil
	}
	return newLocalActions(r.target, r.log)
}

func (r localRemote) Activate(ctx context.Context, platformData variant.Variant) error {
	if r.target.Activator == nil {
		return nil
	}
	return r.target.Do(ctx, func() {
		r.target.Activator.Activate(ctx, platformData)
	})
}

func (r localRemote) Open(ctx context.Context, files []string, hint string, platformData variant.Variant) error {
	if r.target.Activator == nil {
		return nil
	}
	return r.target.Do(ctx, func() {
		r.target.Activator.Open(ctx, files, hint, platformData)
	})
}

func (r localRemote) CommandLine(ctx context.Context, args []string, platformData variant.Variant) (status int, err error) {
	if r.target.Activator == nil {
		return 0, nil
	}
	err = r.target.Do(ctx, func() {
		status = r.target.Activator.CommandLine(ctx, args, platformData)
	})
	return status, err
}

var typeLocalActions = value.Register(value.Object, "LocalRemoteActionGroup", nil)

func init() {
	value.AddInterface(typeLocalActions, action.TypeGroup)
	value.AddInterface(typeLocalActions, action.TypeRemoteGroup)
}

// localActions runs every call on the exported group through
// target.Do. A failed Do behaves as if the action did not exist.
type localActions struct {
	action.GroupBase

	target Target
	log    *slog.Logger
}

func newLocalActions(target Target, log *slog.Logger) *localActions {
	g := &localActions{target: target, log: log}
	g.Init(typeLocalActions, g)
	return g
}

func (g *localActions) do(f func()) {
	err := g.target.Do(context.Background(), f)
	if err != nil {
		g.log.Error("failed to reach primary instance", slogfield.Error(err))
	}
}

func (g *localActions) ListActions() (names []string) {
	g.do(func() {
		names = g.target.Actions.ListActions()
	})
	return names
}

func (g *localActions) QueryAction(name string) (info action.Info, ok bool) {
	g.do(func() {
		info, ok = g.target.Actions.QueryAction(name)
	})
	return info, ok
}

func (g *localActions) ActivateAction(name string, parameter variant.Variant) {
	g.ActivateActionFull(name, parameter, action.EmptyPlatformData())
}

func (g *localActions) ChangeActionState(name string, v variant.Variant) {
	g.ChangeActionStateFull(name, v, action.EmptyPlatformData())
}

func (g *localActions) ActivateActionFull(name string, parameter, platformData variant.Variant) {
	g.do(func() {
		g.target.Actions.ActivateActionFull(name, parameter, platformData)
	})
}

func (g *localActions) ChangeActionStateFull(name string, v, platformData variant.Variant) {
	g.do(func() {
		g.target.Actions.ChangeActionStateFull(name, v, platformData)
	})
}

var session = NewLocal()

// Session returns the Local bus shared by every instance of the process.
func Session() *Local {
	return session
}
