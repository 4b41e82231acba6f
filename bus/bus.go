// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package bus provides single instance name claiming for applications.
//
// The first instance claiming an application id becomes the primary
// instance. Every later instance claiming the same id is handed a
// [Remote] through which it forwards its activation requests to the
// primary instance.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/variant"
)

var (
	// ErrNameTaken is returned when a name could not be claimed as
	// primary instance.
	ErrNameTaken = errors.New("bus: name is owned by another instance")

	// ErrNoPrimary is returned by Lookup when no instance owns the name.
	ErrNoPrimary = errors.New("bus: no primary instance owns the name")
)

// Activator handles activation requests forwarded from other instances.
// platformData is an "a{sv}" dictionary describing the environment of
// the requesting instance.
type Activator interface {
	Activate(ctx context.Context, platformData variant.Variant)
	Open(ctx context.Context, files []string, hint string, platformData variant.Variant)
	CommandLine(ctx context.Context, args []string, platformData variant.Variant) int
}

// Target is what a primary instance exports under its name.
type Target struct {
	Actions   action.RemoteGroup
	Activator Activator

	// AllowReplacement lets a later claim made with Replace take the
	// name over. NameLost is called once that happened.
	AllowReplacement bool
	NameLost         func()

	// Invoke runs f on the goroutine owning Actions and Activator.
	// A nil Invoke runs f directly.
	Invoke func(ctx context.Context, f func()) error
}

// Do runs f through t.Invoke.
func (t Target) Do(ctx context.Context, f func()) error {
	if t.Invoke == nil {
		err := ctx.Err()
		if err != nil {
			return err
		}
		f()
		return nil
	}
	return t.Invoke(ctx, f)
}

// Remote is the primary instance as seen by another instance.
type Remote interface {
	Actions() action.RemoteGroup
	Activate(ctx context.Context, platformData variant.Variant) error
	Open(ctx context.Context, files []string, hint string, platformData variant.Variant) error
	CommandLine(ctx context.Context, args []string, platformData variant.Variant) (int, error)
}

// ClaimOption configures a single Claim.
type ClaimOption func(*ClaimOptions)

// ClaimOptions are the options of a Claim. Bus implementations outside
// this package apply ClaimOption values to it.
type ClaimOptions struct {
	PrimaryOnly bool
	Replace     bool
}

// PrimaryOnly fails the claim with ErrNameTaken instead of returning a
// remote registration.
func PrimaryOnly() ClaimOption {
	return func(co *ClaimOptions) {
		co.PrimaryOnly = true
	}
}

// Replace takes the name over from a primary instance which allows
// replacement.
func Replace() ClaimOption {
	return func(co *ClaimOptions) {
		co.Replace = true
	}
}

// ApplyClaimOptions folds opts into ClaimOptions.
func ApplyClaimOptions(opts ...ClaimOption) ClaimOptions {
	var co ClaimOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

// Bus arbitrates which instance owns an application id.
type Bus interface {
	Claim(ctx context.Context, appID string, target Target, opts ...ClaimOption) (*Registration, error)
	Lookup(ctx context.Context, appID string) (Remote, error)
}

// Registration is the result of a successful Claim.
type Registration struct {
	remote  Remote
	release func(context.Context) error
	once    sync.Once
	err     error
}

// Primary returns the registration of a primary instance. release
// gives the name up again.
func Primary(release func(context.Context) error) *Registration {
	return &Registration{release: release}
}

// Secondary returns the registration of an instance which found r to
// be the primary instance.
func Secondary(r Remote) *Registration {
	return &Registration{remote: r}
}

// IsRemote reports whether another instance owns the name.
func (r *Registration) IsRemote() bool {
	return r.remote != nil
}

// Remote returns the primary instance. It is nil for a primary
// registration.
func (r *Registration) Remote() Remote {
	return r.remote
}

// Release gives the name up if r is a primary registration. Only the
// first call has an effect.
func (r *Registration) Release(ctx context.Context) error {
	r.once.Do(func() {
		if r.release != nil {
			r.err = r.release(ctx)
		}
	})
	return r.err
}
