// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"log/slog"
	"time"

	"github.com/z5labs/strata/bus/httpbus"
	"github.com/z5labs/strata/config"
	"github.com/z5labs/strata/notify"
	"github.com/z5labs/strata/notify/webhook"
	"github.com/z5labs/strata/pkg/noop"
)

// Settings describe an Application in configuration, e.g.
//
//	id: org.example.Editor
//	flags: handles-open,allow-replacement
//	inactivity_timeout: 30s
//	notification_backend: webhook
//	webhook:
//	  url: https://hooks.example.org/notifications
//	export:
//	  address: 127.0.0.1:7337
type Settings struct {
	ID                  string        `config:"id"`
	Flags               Flags         `config:"flags"`
	InactivityTimeout   time.Duration `config:"inactivity_timeout"`
	NotificationBackend string        `config:"notification_backend"`

	Webhook struct {
		URL string `config:"url"`
	} `config:"webhook"`

	// Export.Address claims the id on an httpbus.Bus instead of the
	// process local bus.
	Export struct {
		Address string `config:"address"`
	} `config:"export"`
}

// LoadSettings reads srcs in order, later sources overriding earlier
// ones, and decodes the result into Settings.
func LoadSettings(srcs ...config.Source) (Settings, error) {
	var s Settings
	m, err := config.Read(srcs...)
	if err != nil {
		return s, err
	}
	err = m.Unmarshal(&s)
	return s, err
}

// FromSettings returns a new Application described by s. opts are
// applied after the options derived from s.
//
// The bus and notification registry derived from s log to the handler
// given with LogHandler, if any.
func FromSettings(s Settings, opts ...Option) (*Application, error) {
	o := &options{logHandler: noop.LogHandler{}}
	for _, opt := range opts {
		opt(o)
	}

	derived := []Option{
		InactivityTimeout(s.InactivityTimeout),
		NotificationRegistry(settingsRegistry(s, o.logHandler)),
	}
	if s.Export.Address != "" {
		derived = append(derived, Bus(httpbus.New(s.Export.Address, httpbus.LogHandler(o.logHandler))))
	}
	return New(s.ID, s.Flags, append(derived, opts...)...)
}

func settingsRegistry(s Settings, h slog.Handler) *notify.Registry {
	if s.NotificationBackend == "" && s.Webhook.URL == "" {
		return notify.Default()
	}

	var regOpts []notify.RegistryOption
	regOpts = append(regOpts, notify.LogHandler(h))
	if s.NotificationBackend != "" {
		regOpts = append(regOpts, notify.ConfigSource(config.Map{
			"notification_backend": s.NotificationBackend,
		}))
	}

	r := notify.NewRegistry(regOpts...)
	if s.Webhook.URL != "" {
		// a fresh registry can not hold the name yet
		_ = r.Register(webhook.Factory(
			webhook.URL(s.Webhook.URL),
			webhook.LogHandler(h),
		))
	}
	return r
}
