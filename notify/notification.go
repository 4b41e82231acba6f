// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/z5labs/strata/action"
	"github.com/z5labs/strata/pkg/slogfield"
	"github.com/z5labs/strata/variant"
)

// Priority of a Notification.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityLow
	PriorityHigh
	PriorityUrgent
)

var priorityNicks = [...]string{
	PriorityNormal: "normal",
	PriorityLow:    "low",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// String returns the nick of the priority, e.g. "urgent".
func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNicks) {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNicks[p]
}

// UnknownPriorityError is returned when decoding a priority nick fails.
type UnknownPriorityError struct {
	Nick string
}

// Error implements the error interface.
func (e UnknownPriorityError) Error() string {
	return fmt.Sprintf("unknown notification priority: %q", e.Nick)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (p *Priority) UnmarshalText(b []byte) error {
	for i, nick := range priorityNicks {
		if nick == string(b) {
			*p = Priority(i)
			return nil
		}
	}
	return UnknownPriorityError{Nick: string(b)}
}

// Button is shown on a notification and activates an action when clicked.
type Button struct {
	Label  string
	Action string
	Target variant.Variant
}

// Notification is a message sent to the user through a Backend.
// The zero value is valid but shows nothing useful.
type Notification struct {
	Title    string
	Body     string
	Icon     string
	Category string
	Priority Priority

	// DefaultAction is activated when the notification itself is
	// clicked. It should name an application wide action, i.e. start
	// with "app.".
	DefaultAction       string
	DefaultActionTarget variant.Variant

	Buttons []Button
}

// New returns a notification with the given title.
func New(title string) *Notification {
	return &Notification{Title: title}
}

// SetDefaultAction sets the default action from a detailed action
// name, e.g. "app.open('report.pdf')".
func (n *Notification) SetDefaultAction(detailedAction string) error {
	name, target, err := action.ParseDetailedName(detailedAction)
	if err != nil {
		return err
	}
	n.SetDefaultActionAndTarget(name, target)
	return nil
}

// SetDefaultActionAndTarget sets the default action and its target.
// An invalid target means the action takes no parameter.
func (n *Notification) SetDefaultActionAndTarget(name string, target variant.Variant) {
	warnIfNotAppAction(name)
	n.DefaultAction = name
	n.DefaultActionTarget = target
}

// AddButton adds a button activating the detailed action name.
func (n *Notification) AddButton(label, detailedAction string) error {
	name, target, err := action.ParseDetailedName(detailedAction)
	if err != nil {
		return err
	}
	n.AddButtonWithTarget(label, name, target)
	return nil
}

// AddButtonWithTarget adds a button activating name with target.
func (n *Notification) AddButtonWithTarget(label, name string, target variant.Variant) {
	warnIfNotAppAction(name)
	n.Buttons = append(n.Buttons, Button{
		Label:  label,
		Action: name,
		Target: target,
	})
}

func warnIfNotAppAction(name string) {
	if strings.HasPrefix(name, "app.") {
		return
	}
	logger().Warn("notification action does not start with 'app.' which is unlikely to work properly", slogfield.Action(name))
}

// Serialize returns the notification as an "a{sv}" dictionary.
// Empty fields are left out. The priority is always present.
func (n *Notification) Serialize() variant.Variant {
	m := map[string]variant.Variant{
		"priority": variant.NewString(n.Priority.String()),
	}
	setString := func(key, value string) {
		if value != "" {
			m[key] = variant.NewString(value)
		}
	}
	setString("title", n.Title)
	setString("body", n.Body)
	setString("icon", n.Icon)
	setString("category", n.Category)

	if n.DefaultAction != "" {
		m["default-action"] = variant.NewString(n.DefaultAction)
		if n.DefaultActionTarget.IsValid() {
			m["default-action-target"] = n.DefaultActionTarget
		}
	}

	if len(n.Buttons) > 0 {
		buttons := make([]variant.Variant, 0, len(n.Buttons))
		for _, b := range n.Buttons {
			bm := map[string]variant.Variant{
				"label":  variant.NewString(b.Label),
				"action": variant.NewString(b.Action),
			}
			if b.Target.IsValid() {
				bm["target"] = b.Target
			}
			buttons = append(buttons, variant.NewVardict(bm))
		}
		m["buttons"] = variant.NewArray(variant.TypeVardict, buttons...)
	}
	return variant.NewVardict(m)
}

type buttonJSON struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

type notificationJSON struct {
	Title         string       `json:"title,omitempty"`
	Body          string       `json:"body,omitempty"`
	Icon          string       `json:"icon,omitempty"`
	Category      string       `json:"category,omitempty"`
	Priority      Priority     `json:"priority"`
	DefaultAction string       `json:"default_action,omitempty"`
	Buttons       []buttonJSON `json:"buttons,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface. Actions and
// their targets are encoded as detailed action names.
func (n Notification) MarshalJSON() ([]byte, error) {
	v := notificationJSON{
		Title:    n.Title,
		Body:     n.Body,
		Icon:     n.Icon,
		Category: n.Category,
		Priority: n.Priority,
	}
	if n.DefaultAction != "" {
		v.DefaultAction = action.PrintDetailedName(n.DefaultAction, n.DefaultActionTarget)
	}
	for _, b := range n.Buttons {
		v.Buttons = append(v.Buttons, buttonJSON{
			Label:  b.Label,
			Action: action.PrintDetailedName(b.Action, b.Target),
		})
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var v notificationJSON
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}

	*n = Notification{
		Title:    v.Title,
		Body:     v.Body,
		Icon:     v.Icon,
		Category: v.Category,
		Priority: v.Priority,
	}
	if v.DefaultAction != "" {
		name, target, err := action.ParseDetailedName(v.DefaultAction)
		if err != nil {
			return err
		}
		n.DefaultAction = name
		n.DefaultActionTarget = target
	}
	for _, bv := range v.Buttons {
		name, target, err := action.ParseDetailedName(bv.Action)
		if err != nil {
			return err
		}
		n.Buttons = append(n.Buttons, Button{
			Label:  bv.Label,
			Action: name,
			Target: target,
		})
	}
	return nil
}
