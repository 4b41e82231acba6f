// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package application

import (
	"fmt"
	"slices"
	"strings"
)

// Flags change how an Application registers and handles activation.
type Flags uint32

const (
	// IsService applications are launched by a service manager. They
	// refuse to run as a secondary instance and exit after a period of
	// inactivity.
	IsService Flags = 1 << iota

	// IsLauncher applications never become the primary instance.
	IsLauncher

	// HandlesOpen applications accept files to open.
	HandlesOpen

	// HandlesCommandLine applications handle their arguments in the
	// primary instance through the command-line signal.
	HandlesCommandLine

	// SendEnvironment adds the environment of a secondary instance to
	// the platform data it forwards.
	SendEnvironment

	// NonUnique applications never claim their id. Every instance is a
	// primary instance.
	NonUnique

	// CanOverrideAppID allows the id to be changed by settings.
	CanOverrideAppID

	// AllowReplacement lets a later instance take the id over.
	AllowReplacement

	// Replace takes the id over from a primary instance which allows
	// replacement.
	Replace
)

// DefaultFlags is the zero set of flags.
const DefaultFlags Flags = 0

var flagNicks = [...]string{
	"is-service",
	"is-launcher",
	"handles-open",
	"handles-command-line",
	"send-environment",
	"non-unique",
	"can-override-app-id",
	"allow-replacement",
	"replace",
}

// UnknownFlagError is returned when parsing a flag nick which does not exist.
type UnknownFlagError struct {
	Nick string
}

// Error implements the error interface.
func (e UnknownFlagError) Error() string {
	return fmt.Sprintf("unknown application flag: %q", e.Nick)
}

// String returns the comma separated nicks of the set flags.
func (f Flags) String() string {
	if f == DefaultFlags {
		return "default"
	}

	var nicks []string
	for i, nick := range flagNicks {
		if f&(1<<i) != 0 {
			nicks = append(nicks, nick)
		}
	}
	return strings.Join(nicks, ",")
}

// MarshalText implements the encoding.TextMarshaler interface.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// It accepts comma separated nicks, e.g. "handles-open,non-unique".
func (f *Flags) UnmarshalText(b []byte) error {
	var flags Flags
	for nick := range strings.SplitSeq(string(b), ",") {
		nick = strings.TrimSpace(nick)
		if nick == "" || nick == "default" {
			continue
		}
		i := slices.Index(flagNicks[:], nick)
		if i < 0 {
			return UnknownFlagError{Nick: nick}
		}
		flags |= 1 << i
	}
	*f = flags
	return nil
}
