// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/value"
	"github.com/z5labs/strata/variant"
)

// TypeExportedGroup is the instance type of [ExportedGroup].
var TypeExportedGroup = value.Register(TypeSimpleGroup, "ExportedActionGroup", nil)

func init() {
	value.AddInterface(TypeExportedGroup, TypeRemoteGroup)
}

// RemoteGroup is a [Group] whose activations carry platform data, a
// string keyed dictionary ("a{sv}") describing the environment of the
// requesting process.
type RemoteGroup interface {
	Group

	ActivateActionFull(name string, parameter, platformData variant.Variant)
	ChangeActionStateFull(name string, v, platformData variant.Variant)
}

// PlatformHooks observe the platform data of remote requests. BeforeEmit
// runs before the requested operation and AfterEmit after it. Either may
// be nil.
type PlatformHooks struct {
	BeforeEmit func(platformData variant.Variant)
	AfterEmit  func(platformData variant.Variant)
}

// ExportedGroup is a [SimpleGroup] which can be driven remotely. The
// platform data of every remote request is handed to its hooks around
// the underlying group operation.
type ExportedGroup struct {
	SimpleGroup

	hooks PlatformHooks
}

// NewExportedGroup returns an empty group calling hooks around remote
// requests.
func NewExportedGroup(hooks PlatformHooks) *ExportedGroup {
	g := &ExportedGroup{hooks: hooks}
	g.SimpleGroup.Init(TypeExportedGroup, g)
	return g
}

// ActivateActionFull implements the [RemoteGroup] interface.
func (g *ExportedGroup) ActivateActionFull(name string, parameter, platformData variant.Variant) {
	if !validPlatformData(name, platformData) {
		return
	}
	g.before(platformData)
	g.ActivateAction(name, parameter)
	g.after(platformData)
}

// ChangeActionStateFull implements the [RemoteGroup] interface.
func (g *ExportedGroup) ChangeActionStateFull(name string, v, platformData variant.Variant) {
	if !validPlatformData(name, platformData) {
		return
	}
	g.before(platformData)
	g.ChangeActionState(name, v)
	g.after(platformData)
}

func (g *ExportedGroup) before(platformData variant.Variant) {
	if g.hooks.BeforeEmit != nil {
		g.hooks.BeforeEmit(platformData)
	}
}

func (g *ExportedGroup) after(platformData variant.Variant) {
	if g.hooks.AfterEmit != nil {
		g.hooks.AfterEmit(platformData)
	}
}

func validPlatformData(name string, platformData variant.Variant) bool {
	if platformData.IsOfType(variant.TypeVardict) {
		return true
	}
	logger().Error(
		"platform data must be a string keyed dictionary",
		slogfield.Action(name),
		slogfield.String("platform_data_type", platformData.Type().String()),
	)
	return false
}

// EmptyPlatformData returns platform data without entries.
func EmptyPlatformData() variant.Variant {
	return variant.NewVardict(nil)
}
