// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"fmt"
	"time"
)

// EventKind tells a consumer what to do with an Event.
type EventKind string

const (
	EventSend     EventKind = "send"
	EventWithdraw EventKind = "withdraw"
)

// Event is the JSON document published by message based backends.
type Event struct {
	Kind         EventKind     `json:"kind"`
	AppID        string        `json:"app_id"`
	ID           string        `json:"id"`
	Time         time.Time     `json:"time"`
	Notification *Notification `json:"notification,omitempty"`
}

// NewSendEvent returns the Event for sending n under id.
func NewSendEvent(appID, id string, n *Notification) Event {
	return Event{
		Kind:         EventSend,
		AppID:        appID,
		ID:           id,
		Time:         time.Now().UTC(),
		Notification: n,
	}
}

// NewWithdrawEvent returns the Event for withdrawing id.
func NewWithdrawEvent(appID, id string) Event {
	return Event{
		Kind:  EventWithdraw,
		AppID: appID,
		ID:    id,
		Time:  time.Now().UTC(),
	}
}

// Key identifies the notification across applications. Backends use
// it to keep the events of one notification in order.
func (e Event) Key() string {
	return fmt.Sprintf("%s/%s", e.AppID, e.ID)
}
