// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package signal

import (
	"log/slog"
	"sync/atomic"

	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/pkg/otelslog"
)

var diag = func() *atomic.Pointer[slog.Logger] {
	p := new(atomic.Pointer[slog.Logger])
	p.Store(otelslog.New(noop.LogHandler{}))
	return p
}()

// SetLogHandler sets the handler receiving diagnostics about contract
// violations, e.g. connecting to an unknown signal.
func SetLogHandler(h slog.Handler) {
	diag.Store(otelslog.New(h))
}

func logger() *slog.Logger {
	return diag.Load()
}
