// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package output

import "errors"

// A missing or misbehaving display is an expected runtime condition, so
// every failure surfaces as one of these values (usually wrapped with
// context) instead of a panic
var (
	// ErrNotInitialized is returned when an operation runs before
	// Initialize, or after the manager has been closed for good
	ErrNotInitialized = errors.New("display manager not initialized")
	// ErrInvalidDevice is returned for device ids outside the output table
	ErrInvalidDevice = errors.New("invalid display device")
	// ErrResourceQuery is returned when the kernel rejects resource
	// enumeration
	ErrResourceQuery = errors.New("querying drm resources failed")
	// ErrTopology is returned when no usable connector, encoder or crtc
	// can be resolved for a display that should have one
	ErrTopology = errors.New("display topology could not be resolved")
	// ErrNotConnected is returned for mode changes on an output without a
	// connected display
	ErrNotConnected = errors.New("display not connected")
	// ErrFramebufferAlloc is returned when backing memory for a new mode
	// cannot be allocated
	ErrFramebufferAlloc = errors.New("framebuffer allocation failed")
	// ErrFramebufferRegister is returned when registering a framebuffer
	// object over freshly allocated memory fails
	ErrFramebufferRegister = errors.New("framebuffer registration failed")
	// ErrModeSet is returned when programming the crtc fails
	ErrModeSet = errors.New("mode set failed")
	// ErrNotSupported is returned for operations the hardware path never
	// honored
	ErrNotSupported = errors.New("operation not supported")
	// ErrInvalidArgument is returned for malformed pass-through payloads
	ErrInvalidArgument = errors.New("invalid argument")
)
