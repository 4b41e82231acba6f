// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpbus exports the actions and activation entry points of an
// application over HTTP.
//
// The instance which manages to listen on the configured address is the
// primary instance. Every other instance finds the address in use and
// talks to the primary instance through a [Client].
//
// Variants are carried in their annotated text form, so that parsing
// them without an expected type yields the original value.
package httpbus

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/z5labs/strata/pkg/noop"
	"github.com/z5labs/strata/variant"
)

// RequestIDHeader carries the id of a request for correlating logs of
// both sides.
const RequestIDHeader = "X-Request-Id"

type options struct {
	logHandler slog.Handler
	client     *http.Client
}

// Option configures a Bus, Handler or Client.
type Option func(*options)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// HTTPClient replaces the default http.Client of a Client.
func HTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Variant is a variant.Variant encoded as annotated variant text.
type Variant struct {
	variant.Variant
}

// WrapVariant returns nil for an invalid v.
func WrapVariant(v variant.Variant) *Variant {
	if !v.IsValid() {
		return nil
	}
	return &Variant{Variant: v}
}

// Unwrap returns the zero variant.Variant for a nil v.
func (v *Variant) Unwrap() variant.Variant {
	if v == nil {
		return variant.Variant{}
	}
	return v.Variant
}

// MarshalText implements the encoding.TextMarshaler interface.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.Print(true)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (v *Variant) UnmarshalText(b []byte) error {
	x, err := variant.Parse(nil, string(b))
	if err != nil {
		return err
	}
	v.Variant = x
	return nil
}

// AppInfo describes the primary instance.
type AppInfo struct {
	AppID            string `json:"app_id"`
	AllowReplacement bool   `json:"allow_replacement"`
}

// ActionInfo describes a single action.
type ActionInfo struct {
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	ParameterType string   `json:"parameter_type,omitempty"`
	StateType     string   `json:"state_type,omitempty"`
	StateHint     *Variant `json:"state_hint,omitempty"`
	State         *Variant `json:"state,omitempty"`
}

type listActionsResponse struct {
	Actions []string `json:"actions"`
}

type activateActionRequest struct {
	Parameter    *Variant `json:"parameter,omitempty"`
	PlatformData *Variant `json:"platform_data"`
}

type changeStateRequest struct {
	Value        *Variant `json:"value"`
	PlatformData *Variant `json:"platform_data"`
}

type activateRequest struct {
	PlatformData *Variant `json:"platform_data"`
}

type openRequest struct {
	Files        []string `json:"files"`
	Hint         string   `json:"hint"`
	PlatformData *Variant `json:"platform_data"`
}

type commandLineRequest struct {
	Arguments    []string `json:"arguments"`
	PlatformData *Variant `json:"platform_data"`
}

type commandLineResponse struct {
	ExitStatus int `json:"exit_status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned by a Client when the primary instance
// responds with a non 2xx status code.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e StatusError) Error() string {
	return fmt.Sprintf("primary instance responded with status %d: %s", e.StatusCode, e.Message)
}

// AddressInUseError is returned when the bus address is bound by a
// process which does not export the requested application.
type AddressInUseError struct {
	Addr  string
	AppID string
}

// Error implements the error interface.
func (e AddressInUseError) Error() string {
	return fmt.Sprintf("address %s is in use by application %q", e.Addr, e.AppID)
}
