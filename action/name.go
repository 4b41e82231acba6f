// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package action

import (
	"fmt"
	"strings"

	"github.com/z5labs/strata/variant"
)

// NameIsValid reports whether name is a valid action name. A valid name
// is non-empty and consists only of alphanumerics, '.' and '-'.
func NameIsValid(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}

// InvalidNameError is returned when an action name does not satisfy
// [NameIsValid].
type InvalidNameError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e InvalidNameError) Error() string {
	return fmt.Sprintf("invalid action name: %q", e.Name)
}

// ParseDetailedNameError is returned by [ParseDetailedName].
type ParseDetailedNameError struct {
	DetailedName string
	Cause        error
}

// Error implements the [builtin.error] interface.
func (e ParseDetailedNameError) Error() string {
	return fmt.Sprintf("detailed action name %q has invalid format: %s", e.DetailedName, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ParseDetailedNameError) Unwrap() error {
	return e.Cause
}

type formatError string

func (e formatError) Error() string {
	return string(e)
}

// ParseDetailedName parses a detailed action name into the action name
// and its target. The accepted forms are
//
//	name
//	name::target
//	name(variant-text)
//
// In the first form the returned target is the zero [variant.Variant].
// In the second form target must itself be a valid action name and is
// returned as a string.
func ParseDetailedName(detailedName string) (string, variant.Variant, error) {
	fail := func(cause error) (string, variant.Variant, error) {
		return "", variant.Variant{}, ParseDetailedNameError{DetailedName: detailedName, Cause: cause}
	}

	i := strings.IndexAny(detailedName, ":()")
	if i < 0 {
		if !NameIsValid(detailedName) {
			return fail(InvalidNameError{Name: detailedName})
		}
		return detailedName, variant.Variant{}, nil
	}

	name := detailedName[:i]
	if !NameIsValid(name) {
		return fail(InvalidNameError{Name: name})
	}

	rest := detailedName[i:]
	switch rest[0] {
	case ':':
		if !strings.HasPrefix(rest, "::") {
			return fail(formatError("expected '::' after action name"))
		}
		token := rest[2:]
		if !NameIsValid(token) {
			return fail(InvalidNameError{Name: token})
		}
		return name, variant.NewString(token), nil
	case '(':
		if len(rest) < 2 || rest[len(rest)-1] != ')' {
			return fail(formatError("target must be enclosed in parentheses"))
		}
		target, err := variant.Parse(nil, rest[1:len(rest)-1])
		if err != nil {
			return fail(err)
		}
		return name, target, nil
	default:
		return fail(formatError("unexpected ')'"))
	}
}

// PrintDetailedName is the inverse of [ParseDetailedName]. String
// targets which are valid action names are printed in the "name::target"
// form, every other target in the "name(variant-text)" form.
func PrintDetailedName(name string, target variant.Variant) string {
	if !target.IsValid() {
		return name
	}
	if target.IsOfType(variant.TypeString) && NameIsValid(target.Str()) {
		return name + "::" + target.Str()
	}
	return name + "(" + target.Print(true) + ")"
}
