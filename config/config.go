// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/z5labs/strata/config/key"

	"github.com/go-viper/mapstructure/v2"
)

// Store represents a general key value structure.
type Store interface {
	Set(key.Keyer, any) error
}

// Source defines valid config sources as those who can
// serialize themselves into a key value like structure.
type Source interface {
	Apply(Store) error
}

// Manager holds the merged values of every Source given to Read.
type Manager struct {
	store Map
}

// Read applies each Source in order to an empty store.
// Subsequent sources override previous sources.
func Read(srcs ...Source) (*Manager, error) {
	store := make(Map)
	for _, src := range srcs {
		err := src.Apply(store)
		if err != nil {
			return nil, err
		}
	}
	return &Manager{store: store}, nil
}

// UnmarshalOption configures Manager.Unmarshal.
type UnmarshalOption func(*mapstructure.DecoderConfig)

// ErrorUnused makes Unmarshal fail on keys matching no struct field.
func ErrorUnused() UnmarshalOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}
}

// Unmarshal decodes the merged values into v, which must be a pointer.
// Struct fields are matched with the "config" tag.
//
// Values are converted weakly, so "true" from an environment variable
// decodes into a bool field. Strings decode into encoding.TextUnmarshaler
// fields and strings or numbers of nanoseconds into time.Duration fields.
func (m *Manager) Unmarshal(v any, opts ...UnmarshalOption) error {
	dc := &mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: composeDecodeHooks(
			textUnmarshalerHookFunc(),
			timeDurationHookFunc(),
		),
	}
	for _, opt := range opts {
		opt(dc)
	}

	dec, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return err
	}
	return dec.Decode(m.store)
}

var errInvalidDecodeCondition = errors.New("invalid decode condition")

// TypeCoercionError occurs when a config value can not be converted
// to the type of the struct field it is decoded into.
type TypeCoercionError struct {
	From  reflect.Type
	To    reflect.Type
	Cause error
}

// Error implements the error interface.
func (e TypeCoercionError) Error() string {
	return fmt.Sprintf("failed to coerce value from %s to %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e TypeCoercionError) Unwrap() error {
	return e.Cause
}

// composeDecodeHooks runs the first hook whose decode condition holds.
func composeDecodeHooks(hs ...mapstructure.DecodeHookFunc) mapstructure.DecodeHookFuncValue {
	return func(f, t reflect.Value) (any, error) {
		for _, h := range hs {
			v, err := mapstructure.DecodeHookExec(h, f, t)
			if errors.Is(err, errInvalidDecodeCondition) {
				continue
			}
			if err != nil {
				return nil, TypeCoercionError{
					From:  f.Type(),
					To:    t.Type(),
					Cause: err,
				}
			}
			return v, nil
		}
		return f.Interface(), nil
	}
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || !reflect.PointerTo(t).Implements(textUnmarshalerType) {
			return nil, errInvalidDecodeCondition
		}

		result := reflect.New(t)
		err := result.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(data.(string)))
		if err != nil {
			return nil, err
		}
		return result.Interface(), nil
	}
}

func timeDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeFor[time.Duration]() {
			return nil, errInvalidDecodeCondition
		}

		v := reflect.ValueOf(data)
		switch {
		case f.Kind() == reflect.String:
			return time.ParseDuration(v.String())
		case v.CanInt():
			return time.Duration(v.Int()), nil
		case v.CanFloat():
			return time.Duration(v.Float()), nil
		default:
			return nil, errInvalidDecodeCondition
		}
	}
}
