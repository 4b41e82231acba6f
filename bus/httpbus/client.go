// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpbus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/internal/httpclient"
	"github.com/z5labs/strata/internal/try"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"

	"github.com/google/uuid"
)

// TypeClient is the instance type of [Client].
var TypeClient = value.Register(value.Object, "HTTPRemoteActionGroup", nil)

func init() {
	value.AddInterface(TypeClient, action.TypeGroup)
	value.AddInterface(TypeClient, action.TypeRemoteGroup)
}

// Client talks to a primary instance. It is an action.RemoteGroup
// over the actions of the primary instance and implements bus.Remote.
//
// The action.Group methods have no way of reporting failures, so they
// log them and behave as if the action did not exist. Use the methods
// taking a context.Context to observe errors.
type Client struct {
	action.GroupBase

	log     *slog.Logger
	http    *http.Client
	baseURL string
}

// Dial returns a Client for the primary instance at baseURL, e.g.
// "http://127.0.0.1:7337". No connection is made until the first
// request.
func Dial(baseURL string, opts ...Option) *Client {
	o := newOptions(opts)
	if o.client == nil {
		o.client = httpclient.New(
			httpclient.Name("httpbus"),
			httpclient.LogHandler(o.logHandler),
			httpclient.Timeout(5*time.Second),
		)
	}

	c := &Client{
		log:     otelslog.New(o.logHandler),
		http:    o.client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	c.Init(TypeClient, c)
	return c
}

// App describes the primary instance.
func (c *Client) App(ctx context.Context) (AppInfo, error) {
	var info AppInfo
	err := c.do(ctx, http.MethodGet, "/app", nil, &info)
	return info, err
}

// List lists the action names of the primary instance.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var resp listActionsResponse
	err := c.do(ctx, http.MethodGet, "/actions", nil, &resp)
	return resp.Actions, err
}

// Describe queries a single action. The second result is false if the
// primary instance has no such action.
func (c *Client) Describe(ctx context.Context, name string) (action.Info, bool, error) {
	var resp ActionInfo
	err := c.do(ctx, http.MethodGet, actionPath(name), nil, &resp)
	var serr StatusError
	if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
		return action.Info{}, false, nil
	}
	if err != nil {
		return action.Info{}, false, err
	}

	info := action.Info{
		Enabled:   resp.Enabled,
		StateHint: resp.StateHint.Unwrap(),
		State:     resp.State.Unwrap(),
	}
	if resp.ParameterType != "" {
		info.ParameterType, err = variant.ParseType(resp.ParameterType)
		if err != nil {
			return action.Info{}, false, err
		}
	}
	if resp.StateType != "" {
		info.StateType, err = variant.ParseType(resp.StateType)
		if err != nil {
			return action.Info{}, false, err
		}
	}
	return info, true, nil
}

// Invoke activates the named action with parameter on behalf of the
// environment described by platformData.
func (c *Client) Invoke(ctx context.Context, name string, parameter, platformData variant.Variant) error {
	req := activateActionRequest{
		Parameter:    WrapVariant(parameter),
		PlatformData: WrapVariant(platformData),
	}
	return c.do(ctx, http.MethodPost, actionPath(name)+"/activate", req, nil)
}

// SetState requests a state change of the named action.
func (c *Client) SetState(ctx context.Context, name string, v, platformData variant.Variant) error {
	req := changeStateRequest{
		Value:        WrapVariant(v),
		PlatformData: WrapVariant(platformData),
	}
	return c.do(ctx, http.MethodPost, actionPath(name)+"/change-state", req, nil)
}

// Replace asks the primary instance to give its name up.
func (c *Client) Replace(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/replace", nil, nil)
}

// Actions implements the bus.Remote interface.
func (c *Client) Actions() action.RemoteGroup {
	return c
}

// Activate implements the bus.Remote interface.
func (c *Client) Activate(ctx context.Context, platformData variant.Variant) error {
	req := activateRequest{
		PlatformData: WrapVariant(platformData),
	}
	return c.do(ctx, http.MethodPost, "/activate", req, nil)
}

// Open implements the bus.Remote interface.
func (c *Client) Open(ctx context.Context, files []string, hint string, platformData variant.Variant) error {
	req := openRequest{
		Files:        files,
		Hint:         hint,
		PlatformData: WrapVariant(platformData),
	}
	return c.do(ctx, http.MethodPost, "/open", req, nil)
}

// CommandLine implements the bus.Remote interface.
func (c *Client) CommandLine(ctx context.Context, args []string, platformData variant.Variant) (int, error) {
	req := commandLineRequest{
		Arguments:    args,
		PlatformData: WrapVariant(platformData),
	}
	var resp commandLineResponse
	err := c.do(ctx, http.MethodPost, "/command-line", req, &resp)
	return resp.ExitStatus, err
}

// ListActions implements the action.Group interface.
func (c *Client) ListActions() []string {
	names, err := c.List(context.Background())
	if err != nil {
		c.log.Error("failed to list remote actions", slogfield.Error(err))
		return nil
	}
	return names
}

// QueryAction implements the action.Group interface.
func (c *Client) QueryAction(name string) (action.Info, bool) {
	info, ok, err := c.Describe(context.Background(), name)
	if err != nil {
		c.log.Error("failed to query remote action", slogfield.Action(name), slogfield.Error(err))
		return action.Info{}, false
	}
	return info, ok
}

// ActivateAction implements the action.Group interface.
func (c *Client) ActivateAction(name string, parameter variant.Variant) {
	c.ActivateActionFull(name, parameter, action.EmptyPlatformData())
}

// ChangeActionState implements the action.Group interface.
func (c *Client) ChangeActionState(name string, v variant.Variant) {
	c.ChangeActionStateFull(name, v, action.EmptyPlatformData())
}

// ActivateActionFull implements the action.RemoteGroup interface.
func (c *Client) ActivateActionFull(name string, parameter, platformData variant.Variant) {
	err := c.Invoke(context.Background(), name, parameter, platformData)
	if err != nil {
		c.log.Error("failed to activate remote action", slogfield.Action(name), slogfield.Error(err))
	}
}

// ChangeActionStateFull implements the action.RemoteGroup interface.
func (c *Client) ChangeActionStateFull(name string, v, platformData variant.Variant) {
	err := c.SetState(context.Background(), name, v, platformData)
	if err != nil {
		c.log.Error("failed to change remote action state", slogfield.Action(name), slogfield.Error(err))
	}
}

func actionPath(name string) string {
	return "/actions/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	var r io.Reader
	if body != nil {
		b, merr := json.Marshal(body)
		if merr != nil {
			return merr
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer try.Close(&err, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return StatusError{
			StatusCode: resp.StatusCode,
			Message:    e.Error,
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
