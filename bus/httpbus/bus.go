// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpbus

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/z5labs/strata/bus"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"
)

const (
	replaceAttempts = 20
	replaceBackoff  = 50 * time.Millisecond
)

// Bus is a bus.Bus arbitrating by a TCP address. The instance which
// listens on the address owns the name.
type Bus struct {
	addr   string
	opts   []Option
	log    *slog.Logger
	listen func(network, addr string) (net.Listener, error)
}

// New returns a Bus listening on or dialing addr, e.g. "127.0.0.1:7337".
func New(addr string, opts ...Option) *Bus {
	o := newOptions(opts)
	return &Bus{
		addr:   addr,
		opts:   opts,
		log:    otelslog.New(o.logHandler).With(slogfield.String("addr", addr)),
		listen: net.Listen,
	}
}

// Addr returns the address of the bus.
func (b *Bus) Addr() string {
	return b.addr
}

// Claim implements the bus.Bus interface.
func (b *Bus) Claim(ctx context.Context, appID string, target bus.Target, opts ...bus.ClaimOption) (*bus.Registration, error) {
	co := bus.ApplyClaimOptions(opts...)

	ls, err := b.listen("tcp", b.addr)
	if err == nil {
		return b.serve(ctx, ls, appID, target), nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		b.log.ErrorContext(ctx, "failed to listen for connections", slogfield.Error(err))
		return nil, err
	}

	c := Dial("http://"+b.addr, b.opts...)
	info, err := c.App(ctx)
	if err != nil {
		return nil, err
	}
	if info.AppID != appID {
		return nil, AddressInUseError{Addr: b.addr, AppID: info.AppID}
	}

	if co.Replace && info.AllowReplacement {
		return b.replace(ctx, c, appID, target)
	}
	if co.PrimaryOnly {
		return nil, bus.ErrNameTaken
	}
	b.log.DebugContext(ctx, "name owned by another instance", slogfield.AppID(appID))
	return bus.Secondary(c), nil
}

func (b *Bus) replace(ctx context.Context, c *Client, appID string, target bus.Target) (*bus.Registration, error) {
	err := c.Replace(ctx)
	if err != nil {
		return nil, err
	}

	t := time.NewTicker(replaceBackoff)
	defer t.Stop()
	for range replaceAttempts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}

		ls, err := b.listen("tcp", b.addr)
		if err == nil {
			b.log.InfoContext(ctx, "replaced primary instance", slogfield.AppID(appID))
			return b.serve(ctx, ls, appID, target), nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
	}
	return nil, bus.ErrNameTaken
}

// Lookup implements the bus.Bus interface.
func (b *Bus) Lookup(ctx context.Context, appID string) (bus.Remote, error) {
	c := Dial("http://"+b.addr, b.opts...)
	info, err := c.App(ctx)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, bus.ErrNoPrimary
		}
		return nil, err
	}
	if info.AppID != appID {
		return nil, bus.ErrNoPrimary
	}
	return c, nil
}

type server struct {
	log *slog.Logger
	srv *http.Server

	done     chan struct{}
	serveErr error

	stopOnce sync.Once
	stopErr  error
}

func (b *Bus) serve(ctx context.Context, ls net.Listener, appID string, target bus.Target) *bus.Registration {
	s := &server{
		log:  b.log,
		done: make(chan struct{}),
	}

	onReplace := func() {
		if target.NameLost != nil {
			target.NameLost()
		}
		s.stop(context.Background())
	}
	s.srv = &http.Server{
		Handler: newHandler(appID, target, onReplace, newOptions(b.opts)),
	}

	go func() {
		defer close(s.done)

		err := s.srv.Serve(ls)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("bus server encountered unexpected error", slogfield.Error(err))
			s.serveErr = err
		}
	}()

	b.log.InfoContext(ctx, "claimed name", slogfield.AppID(appID))
	return bus.Primary(s.stop)
}

func (s *server) stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.log.Info("shutting down bus server")
		s.stopErr = s.srv.Shutdown(ctx)
		<-s.done
	})
	return errors.Join(s.stopErr, s.serveErr)
}
