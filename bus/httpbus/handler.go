// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpbus

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/bus"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/variant"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

type handler struct {
	appID     string
	target    bus.Target
	log       *slog.Logger
	onReplace func()
}

// NewHandler returns the http.Handler exporting target as appID.
func NewHandler(appID string, target bus.Target, opts ...Option) http.Handler {
	return newHandler(appID, target, nil, newOptions(opts))
}

func newHandler(appID string, target bus.Target, onReplace func(), o *options) http.Handler {
	h := &handler{
		appID:     appID,
		target:    target,
		log:       otelslog.New(o.logHandler).With(slogfield.AppID(appID)),
		onReplace: onReplace,
	}

	mux := http.NewServeMux()
	registerEndpoint(mux, "GET /app", http.HandlerFunc(h.app))
	registerEndpoint(mux, "GET /actions", http.HandlerFunc(h.listActions))
	registerEndpoint(mux, "GET /actions/{name}", http.HandlerFunc(h.queryAction))
	registerEndpoint(mux, "POST /actions/{name}/activate", http.HandlerFunc(h.activateAction))
	registerEndpoint(mux, "POST /actions/{name}/change-state", http.HandlerFunc(h.changeActionState))
	registerEndpoint(mux, "POST /activate", http.HandlerFunc(h.activate))
	registerEndpoint(mux, "POST /open", http.HandlerFunc(h.open))
	registerEndpoint(mux, "POST /command-line", http.HandlerFunc(h.commandLine))
	registerEndpoint(mux, "POST /replace", http.HandlerFunc(h.replace))

	return otelhttp.NewHandler(
		mux,
		"httpbus",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)
}

func registerEndpoint(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, otelhttp.WithRouteTag(pattern, h))
}

func (h *handler) app(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, AppInfo{
		AppID:            h.appID,
		AllowReplacement: h.target.AllowReplacement,
	})
}

func (h *handler) listActions(w http.ResponseWriter, r *http.Request) {
	if h.target.Actions == nil {
		h.writeJSON(w, r, http.StatusOK, listActionsResponse{Actions: []string{}})
		return
	}

	var resp listActionsResponse
	err := h.target.Do(r.Context(), func() {
		resp.Actions = h.target.Actions.ListActions()
	})
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	if resp.Actions == nil {
		resp.Actions = []string{}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *handler) queryAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var (
		resp ActionInfo
		ok   bool
	)
	err := h.target.Do(r.Context(), func() {
		if h.target.Actions == nil {
			return
		}
		info, found := h.target.Actions.QueryAction(name)
		if !found {
			return
		}
		ok = true
		resp = ActionInfo{
			Name:          name,
			Enabled:       info.Enabled,
			ParameterType: info.ParameterType.String(),
			StateType:     info.StateType.String(),
			StateHint:     WrapVariant(info.StateHint),
			State:         WrapVariant(info.State),
		}
	})
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	if !ok {
		h.writeError(w, r, http.StatusNotFound, errUnknownAction)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

var (
	errUnknownAction        = errors.New("unknown action")
	errInvalidPlatformData  = errors.New("platform data must be a string keyed dictionary")
	errParameterMismatch    = errors.New("parameter does not match the parameter type of the action")
	errStateMismatch        = errors.New("value does not match the state type of the action")
	errReplacementForbidden = errors.New("primary instance does not allow replacement")
)

func (h *handler) activateAction(w http.ResponseWriter, r *http.Request) {
	var req activateActionRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	platformData, ok := h.platformData(w, r, req.PlatformData)
	if !ok {
		return
	}
	name := r.PathValue("name")
	parameter := req.Parameter.Unwrap()

	var rejected error
	err := h.target.Do(r.Context(), func() {
		rejected = h.checkAction(name, func(info action.Info) error {
			if info.ParameterType.IsZero() {
				if parameter.IsValid() {
					return errParameterMismatch
				}
				return nil
			}
			if !parameter.IsOfType(info.ParameterType) {
				return errParameterMismatch
			}
			return nil
		})
		if rejected == nil {
			h.target.Actions.ActivateActionFull(name, parameter, platformData)
		}
	})
	h.finish(w, r, name, err, rejected)
}

func (h *handler) changeActionState(w http.ResponseWriter, r *http.Request) {
	var req changeStateRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	platformData, ok := h.platformData(w, r, req.PlatformData)
	if !ok {
		return
	}
	name := r.PathValue("name")
	v := req.Value.Unwrap()

	var rejected error
	err := h.target.Do(r.Context(), func() {
		rejected = h.checkAction(name, func(info action.Info) error {
			if info.StateType.IsZero() || !v.IsOfType(info.StateType) {
				return errStateMismatch
			}
			return nil
		})
		if rejected == nil {
			h.target.Actions.ChangeActionStateFull(name, v, platformData)
		}
	})
	h.finish(w, r, name, err, rejected)
}

// checkAction must be called through target.Do.
func (h *handler) checkAction(name string, check func(action.Info) error) error {
	if h.target.Actions == nil {
		return errUnknownAction
	}
	info, ok := h.target.Actions.QueryAction(name)
	if !ok {
		return errUnknownAction
	}
	return check(info)
}

func (h *handler) finish(w http.ResponseWriter, r *http.Request, name string, err, rejected error) {
	switch {
	case err != nil:
		h.writeError(w, r, http.StatusServiceUnavailable, err)
	case rejected == errUnknownAction:
		h.writeError(w, r, http.StatusNotFound, rejected)
	case rejected != nil:
		h.log.WarnContext(r.Context(), "rejected request for action", slogfield.Action(name), slogfield.Error(rejected))
		h.writeError(w, r, http.StatusBadRequest, rejected)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	platformData, ok := h.platformData(w, r, req.PlatformData)
	if !ok {
		return
	}

	err := h.target.Do(r.Context(), func() {
		if h.target.Activator != nil {
			h.target.Activator.Activate(r.Context(), platformData)
		}
	})
	h.finish(w, r, "", err, nil)
}

func (h *handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	platformData, ok := h.platformData(w, r, req.PlatformData)
	if !ok {
		return
	}

	err := h.target.Do(r.Context(), func() {
		if h.target.Activator != nil {
			h.target.Activator.Open(r.Context(), req.Files, req.Hint, platformData)
		}
	})
	h.finish(w, r, "", err, nil)
}

func (h *handler) commandLine(w http.ResponseWriter, r *http.Request) {
	var req commandLineRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	platformData, ok := h.platformData(w, r, req.PlatformData)
	if !ok {
		return
	}

	var resp commandLineResponse
	err := h.target.Do(r.Context(), func() {
		if h.target.Activator != nil {
			resp.ExitStatus = h.target.Activator.CommandLine(r.Context(), req.Arguments, platformData)
		}
	})
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *handler) replace(w http.ResponseWriter, r *http.Request) {
	if !h.target.AllowReplacement || h.onReplace == nil {
		h.writeError(w, r, http.StatusConflict, errReplacementForbidden)
		return
	}
	h.log.InfoContext(r.Context(), "replacing primary instance", slogfield.String("request_id", r.Header.Get(RequestIDHeader)))
	w.WriteHeader(http.StatusAccepted)

	// the response must be flushed before the server shuts down
	go h.onReplace()
}

func (h *handler) platformData(w http.ResponseWriter, r *http.Request, v *Variant) (variant.Variant, bool) {
	pd := v.Unwrap()
	if !pd.IsOfType(variant.TypeVardict) {
		h.writeError(w, r, http.StatusBadRequest, errInvalidPlatformData)
		return variant.Variant{}, false
	}
	return pd, true
}

func (h *handler) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	err := dec.Decode(v)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to encode response", slogfield.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.log.DebugContext(
		r.Context(),
		"request failed",
		slogfield.String("request_id", r.Header.Get(RequestIDHeader)),
		slogfield.Int("status_code", status),
		slogfield.Error(err),
	)
	h.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}
