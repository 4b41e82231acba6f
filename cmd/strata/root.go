// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/z5labs/strata/application"
	"github.com/z5labs/strata/bus/httpbus"
	"github.com/z5labs/strata/config"
	"github.com/z5labs/strata/internal/try"
	"github.com/z5labs/strata/lifecycle"
	"github.com/z5labs/strata/pkg/otelslog"
	"github.com/z5labs/strata/variant"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const defaultAddr = "http://127.0.0.1:7337"

// InvalidAppIDError is returned for a malformed application id argument.
type InvalidAppIDError struct {
	AppID string
}

// Error implements the error interface.
func (e InvalidAppIDError) Error() string {
	return fmt.Sprintf("invalid application id: %q", e.AppID)
}

// AppIDMismatchError is returned when the instance listening on the
// address is not the requested application.
type AppIDMismatchError struct {
	Want string
	Got  string
}

// Error implements the error interface.
func (e AppIDMismatchError) Error() string {
	return fmt.Sprintf("%s is not running, found %s instead", e.Want, e.Got)
}

// cliConfig is read from the config file and STRATA_* environment
// variables, e.g.
//
//	addr: http://127.0.0.1:7337
//	apps:
//	  org.example.Editor:
//	    addr: http://{{ env "EDITOR_HOST" | default "127.0.0.1" }}:7338
type cliConfig struct {
	Addr string `config:"addr"`
	Apps map[string]struct {
		Addr string `config:"addr"`
	} `config:"apps"`
}

type rootOptions struct {
	addr       string
	configPath string
	trace      bool
	verbose    bool

	environ    func() []string
	getenv     func(string) string
	cfg        cliConfig
	logHandler slog.Handler
}

func buildCmd(environ func() []string) *cobra.Command {
	o := &rootOptions{
		environ: environ,
		getenv:  lookupEnv(environ),
	}

	var lc lifecycle.Context
	cmd := &cobra.Command{
		Use:           "strata",
		Short:         "Interact with running applications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			defer try.Recover(&err)

			level := slog.LevelWarn
			if o.verbose {
				level = slog.LevelDebug
			}
			o.logHandler = otelslog.NewHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))

			err = o.readConfig()
			if err != nil {
				return err
			}

			if !o.trace {
				return nil
			}
			tp, err := initTracerProvider(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			otel.SetTracerProvider(tp)
			lc.OnPostRun(lifecycle.HookFunc(tp.Shutdown))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.addr, "addr", "", "base URL the primary instance is exported on (default "+defaultAddr+")")
	flags.StringVar(&o.configPath, "config", "", "config file, $STRATA_CONFIG or strata/config.yaml in the user config dir if empty")
	flags.BoolVar(&o.trace, "trace", false, "write traces to stderr")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log debug messages to stderr")

	cmd.AddCommand(
		listActionsCmd(o),
		actionCmd(o),
		launchCmd(o),
		versionCmd(),
	)

	return withPostRun(cmd, &lc)
}

// withPostRun runs the post run hooks of lc after every subcommand,
// including failed ones.
func withPostRun(cmd *cobra.Command, lc *lifecycle.Context) *cobra.Command {
	for _, sub := range cmd.Commands() {
		runE := sub.RunE
		if runE == nil {
			continue
		}
		sub.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				perr := lc.PostRun().Run(context.WithoutCancel(cmd.Context()))
				if err == nil {
					err = perr
				}
			}()
			defer try.Recover(&err)

			return runE(cmd, args)
		}
	}
	return cmd
}

func initTracerProvider(ctx context.Context, w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName("strata"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

func lookupEnv(environ func() []string) func(string) string {
	return func(name string) string {
		for _, kv := range environ() {
			k, v, ok := strings.Cut(kv, "=")
			if ok && k == name {
				return v
			}
		}
		return ""
	}
}

func (o *rootOptions) readConfig() error {
	path := o.configPath
	optional := path == ""
	if path == "" {
		path = o.getenv("STRATA_CONFIG")
	}
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, "strata", "config.yaml")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fileOpts := []config.FileOption{config.Template(config.TemplateEnv(o.getenv))}
	if optional {
		fileOpts = append(fileOpts, config.Optional())
	}

	m, err := config.Read(
		config.FromFile(os.DirFS(filepath.Dir(path)), filepath.Base(path), fileOpts...),
		config.FromEnv(config.EnvPrefix("STRATA_"), config.Environ(o.environ)),
	)
	if err != nil {
		return err
	}
	return m.Unmarshal(&o.cfg)
}

// resolveAddr prefers the --addr flag, then the address configured
// for appID, then the configured default address.
func (o *rootOptions) resolveAddr(appID string) string {
	if o.addr != "" {
		return o.addr
	}
	if app, ok := o.cfg.Apps[appID]; ok && app.Addr != "" {
		return app.Addr
	}
	if o.cfg.Addr != "" {
		return o.cfg.Addr
	}
	return defaultAddr
}

// dial checks appID and returns a client for the instance at the
// configured address, failing if it is not appID.
func (o *rootOptions) dial(ctx context.Context, appID string) (*httpbus.Client, error) {
	if !application.IDIsValid(appID) {
		return nil, InvalidAppIDError{AppID: appID}
	}

	c := httpbus.Dial(o.resolveAddr(appID), httpbus.LogHandler(o.logHandler))
	info, err := c.App(ctx)
	if err != nil {
		c.Unref()
		return nil, err
	}
	if info.AppID != appID {
		c.Unref()
		return nil, AppIDMismatchError{Want: appID, Got: info.AppID}
	}
	return c, nil
}

// platformData forwards the activation tokens of the calling
// environment, if any.
func (o *rootOptions) platformData() variant.Variant {
	pd := make(map[string]variant.Variant)
	if id := o.getenv("DESKTOP_STARTUP_ID"); id != "" {
		pd["desktop-startup-id"] = variant.NewString(id)
	}
	if token := o.getenv("XDG_ACTIVATION_TOKEN"); token != "" {
		pd["activation-token"] = variant.NewString(token)
	}
	return variant.NewVardict(pd)
}
