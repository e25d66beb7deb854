// SPDX-License-Identifier: MIT
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Exception names used to classify failures raised by the tap installation
// primitive. They fill the same role as the exception name of the platform
// frameworks this package fronts: a stable, machine-checkable tag next to
// the human-readable reason.
const (
	ErrNameInvalidBus       = "InvalidBusException"
	ErrNameInvalidArgument  = "InvalidArgumentException"
	ErrNameFormatMismatch   = "FormatMismatchException"
	ErrNameBusAlreadyTapped = "BusAlreadyTappedException"
	ErrNameCallbackFailure  = "CallbackException"
	ErrNameUnknown          = "UnknownException"
)

// ErrNodeDetached is the primitive's own (non-exceptional) failure: the node
// exists but is not attached to a running graph. It travels through
// TryInstallTap unchanged, never wrapped into a TapError.
var ErrNodeDetached = errors.New("node is not attached to a graph")

// TapError is the structured error produced when the installation primitive
// raises. It carries a classification name, a human-readable reason, and any
// key-value diagnostics the failure site attached.
type TapError struct {
	Name     string         // Classification of the underlying failure.
	Reason   string         // Human-readable description.
	UserInfo map[string]any // Diagnostic metadata, may be nil.

	cause error // Set when the raised value was itself an error.
}

func (e *TapError) Error() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if len(e.UserInfo) > 0 {
		// Sorted for deterministic output in logs and tests.
		keys := make([]string, 0, len(e.UserInfo))
		for k := range e.UserInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.UserInfo[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the raised cause, if the raised value was an error.
func (e *TapError) Unwrap() error {
	return e.cause
}

// raisef raises a TapError as a panic. This is the package's internal stand-in
// for the foreign framework throwing: validation failures inside the
// installation primitive never return, they raise, and the public entry
// points translate them back into error values.
func raisef(name string, userInfo map[string]any, format string, args ...any) {
	panic(&TapError{
		Name:     name,
		Reason:   fmt.Sprintf(format, args...),
		UserInfo: userInfo,
	})
}

// asTapError converts a recovered panic value into a *TapError.
// Raised TapErrors pass through untouched, raised errors keep their cause
// chain, anything else is stringified under the unknown classification.
func asTapError(r any) *TapError {
	switch v := r.(type) {
	case *TapError:
		return v
	case error:
		return &TapError{Name: ErrNameUnknown, Reason: v.Error(), cause: v}
	default:
		return &TapError{Name: ErrNameUnknown, Reason: fmt.Sprint(v)}
	}
}
