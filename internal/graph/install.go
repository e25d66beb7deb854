// SPDX-License-Identifier: MIT
package graph

import (
	"errors"

	"github.com/go-audio/audio"
)

// TryInstallTap installs fn as the tap observer on node's output bus,
// converting any failure raised by the installation primitive into a
// *TapError. A nil return means the tap is active and fn will be invoked by
// the engine's real-time callback goroutine until RemoveTap is called.
//
// bufferSize is the requested frame count per delivery; the engine may
// deliver a different count, so it is recorded, not enforced. A nil format
// means "use the node's native format"; a non-nil format must match the
// native one.
//
// Failures reported through the primitive's own error channel (currently
// ErrNodeDetached) are returned unchanged. Everything the primitive raises —
// invalid bus, nil callback, zero buffer size, format mismatch, an already
// tapped bus — comes back as a *TapError; no panic escapes this call. A
// failed install leaves the node untouched, so the call may be retried with
// corrected arguments. Installing on a bus that already has a tap is an
// error, not a replacement.
//
// The installer borrows node and fn for the duration of the call only. The
// caller keeps fn and any state it captures alive for as long as the tap
// stays installed.
func TryInstallTap(node Node, bus int, bufferSize uint32, format *audio.Format, fn TapFunc) (err error) {
	if node == nil {
		return errors.New("graph: install tap: nil node")
	}

	defer func() {
		if r := recover(); r != nil {
			err = asTapError(r)
		}
	}()

	return node.installTap(bus, bufferSize, format, fn)
}

// RemoveTap uninstalls the tap on node's output bus, the symmetric operation
// to TryInstallTap with the same exception-to-error translation. Removing
// from an untapped bus is a no-op returning nil; an invalid bus returns a
// *TapError.
func RemoveTap(node Node, bus int) (err error) {
	if node == nil {
		return errors.New("graph: remove tap: nil node")
	}

	defer func() {
		if r := recover(); r != nil {
			err = asTapError(r)
		}
	}()

	node.removeTap(bus)
	return nil
}
