// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/variant"
)

// Entry declares a [Simple] action for [AddEntries].
type Entry struct {
	Name string

	// Activate is connected to [ActivateSignal] if set.
	Activate func(a *Simple, parameter variant.Variant, userData any)

	// ParameterType is the type string of the parameter, or empty if the
	// action takes none.
	ParameterType string

	// State is the initial state in variant text format, or empty for a
	// stateless action.
	State string

	// ChangeState is connected to [ChangeStateSignal] if set.
	ChangeState func(a *Simple, v variant.Variant, userData any)
}

// AddEntries creates a [Simple] action for every entry and adds it to
// m. userData is passed to the entry callbacks. Entries with an invalid
// name, parameter type or initial state are skipped with a diagnostic.
func AddEntries(m Map, entries []Entry, userData any) {
	for _, entry := range entries {
		a := entry.build()
		if a == nil {
			continue
		}
		if entry.Activate != nil {
			activate := entry.Activate
			a.OnActivate(func(a *Simple, parameter variant.Variant) {
				activate(a, parameter, userData)
			})
		}
		if entry.ChangeState != nil {
			changeState := entry.ChangeState
			a.OnChangeState(func(a *Simple, v variant.Variant) {
				changeState(a, v, userData)
			})
		}
		m.AddAction(a)
		a.Unref()
	}
}

func (entry Entry) build() *Simple {
	var paramType variant.Type
	if entry.ParameterType != "" {
		t, err := variant.ParseType(entry.ParameterType)
		if err != nil || !t.IsDefinite() {
			logger().Error(
				"action entry has invalid parameter type and will not be added",
				slogfield.Action(entry.Name),
				slogfield.String("parameter_type", entry.ParameterType),
			)
			return nil
		}
		paramType = t
	}

	if entry.State == "" {
		return NewSimple(entry.Name, paramType)
	}
	state, err := variant.Parse(nil, entry.State)
	if err != nil {
		logger().Error(
			"action entry has invalid initial state and will not be added",
			slogfield.Action(entry.Name),
			slogfield.String("state", entry.State),
			slogfield.Error(err),
		)
		return nil
	}
	return NewSimpleStateful(entry.Name, paramType, state)
}
