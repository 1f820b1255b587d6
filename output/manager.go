// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package output manages the lifecycle of the physical display outputs on a
// kernel mode-setting card: discovering connected displays, resolving their
// connector → encoder → crtc pipeline, applying display modes and owning the
// framebuffer bound to each active output
package output

import (
	"fmt"
	"sync"

	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/buffer"
	"github.com/Omegaphora/kmsd/kms"
)

// DeviceID names a logical display output
type DeviceID int

const (
	// DevicePrimary is the built-in panel
	DevicePrimary DeviceID = iota
	// DeviceExternal is the pluggable connector
	DeviceExternal
)

func (d DeviceID) String() string {
	switch d {
	case DevicePrimary:
		return "primary"
	case DeviceExternal:
		return "external"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// ParseDevice resolves an output name from config, repl or ipc input
func ParseDevice(name string) (DeviceID, error) {
	switch name {
	case "primary":
		return DevicePrimary, nil
	case "external":
		return DeviceExternal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDevice, name)
	}
}

// Slots of the output table. The table is fixed size: there are only two
// physical roles on this platform
const (
	outputPrimary = iota
	outputExternal
	outputMax
)

func outputIndex(device DeviceID) (int, error) {
	switch device {
	case DevicePrimary:
		return outputPrimary, nil
	case DeviceExternal:
		return outputExternal, nil
	default:
		return -1, fmt.Errorf("%w: %d", ErrInvalidDevice, int(device))
	}
}

// DeviceClass is the pipeline type pairing expected for one logical output
type DeviceClass struct {
	// Connector is the kernel connector type a detect scan accepts
	Connector uint32
	// Encoder is the kernel encoder type the fallback encoder scan accepts
	Encoder uint32
}

// Platform is the static per-device topology and framebuffer format table,
// resolved from configuration
type Platform struct {
	Primary  DeviceClass
	External DeviceClass
	// Depth and BPP are the color depth and bits per pixel used when
	// registering framebuffer objects
	Depth uint8
	BPP   uint8
}

func (p *Platform) class(device DeviceID) DeviceClass {
	if device == DevicePrimary {
		return p.Primary
	}
	return p.External
}

// state is the per-slot record. connector/encoder/crtc are owned exclusively
// by the slot and dropped on reset; fbID and fbHandle are the kernel-side
// resources that need explicit release
type state struct {
	connected bool
	connector *mode.Connector
	encoder   *mode.Encoder
	crtc      *mode.Crtc
	active    mode.Info
	fbID      uint32
	fbHandle  uint32
}

// Manager owns the output table and the card handle. Every operation
// serializes on one mutex; none of them suspends, a call either completes or
// fails synchronously
type Manager struct {
	mu          sync.Mutex
	card        kms.Card
	alloc       buffer.Allocator
	platform    Platform
	initialized bool
	closed      bool
	outputs     [outputMax]state
}

// NewManager wires the manager to an open card and an allocator for
// framebuffer memory. Call Initialize before anything else
func NewManager(card kms.Card, alloc buffer.Allocator, platform Platform) *Manager {
	return &Manager{
		card:     card,
		alloc:    alloc,
		platform: platform,
	}
}

// Initialize readies the output table. Calling it again is a no-op success
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: device already closed", ErrNotInitialized)
	}
	if m.initialized {
		logrus.Debugln("Display manager already initialized")
		return nil
	}
	for i := range m.outputs {
		m.resetOutputLocked(i)
	}
	m.initialized = true
	return nil
}

// Close tears down every output (framebuffers unregistered, memory returned
// to the allocator, descriptors dropped) and closes the card. Safe to call
// more than once
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outputs {
		m.resetOutputLocked(i)
	}
	m.initialized = false
	if m.closed {
		return nil
	}
	m.closed = true
	return m.card.Close()
}

// resetOutputLocked returns a slot to the empty state, releasing anything it
// held. Needs m.mu
func (m *Manager) resetOutputLocked(idx int) {
	st := &m.outputs[idx]

	st.connected = false
	st.active = mode.Info{}
	st.connector = nil
	st.encoder = nil
	st.crtc = nil

	if st.fbID != 0 {
		if err := m.card.RmFB(st.fbID); err != nil {
			logrus.WithError(err).WithField("fb", st.fbID).Warnln("Removing framebuffer failed")
		}
		st.fbID = 0
	}
	if st.fbHandle != 0 {
		if err := m.alloc.Free(st.fbHandle); err != nil {
			logrus.WithError(err).WithField("handle", st.fbHandle).Warnln("Freeing framebuffer memory failed")
		}
		st.fbHandle = 0
	}
}

// IsConnected reports whether the last detect found a connected display on
// the output
func (m *Manager) IsConnected(device DeviceID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := outputIndex(device)
	if err != nil {
		return false
	}
	return m.outputs[idx].connected
}

// ModeInfo returns the active mode of the output. ok is false when the
// output is unresolved, unconnected or has no meaningful mode yet
func (m *Manager) ModeInfo(device DeviceID) (mode.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := outputIndex(device)
	if err != nil {
		return mode.Info{}, false
	}
	st := &m.outputs[idx]
	if !st.connected {
		logrus.WithField("device", device).Debugln("No mode info, display not connected")
		return mode.Info{}, false
	}
	if st.active.Hdisplay == 0 || st.active.Vdisplay == 0 {
		logrus.WithField("device", device).Debugln("No mode info, active mode has no size")
		return mode.Info{}, false
	}
	return st.active, true
}

// PhysicalSize returns the connected display's dimensions in millimeters
func (m *Manager) PhysicalSize(device DeviceID) (width, height uint32, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := outputIndex(device)
	if err != nil {
		return 0, 0, false
	}
	st := &m.outputs[idx]
	if !st.connected {
		return 0, 0, false
	}
	return st.connector.Width, st.connector.Height, true
}

// Modes lists the modes the connected display supports. ok is false for an
// unresolved or unconnected output
func (m *Manager) Modes(device DeviceID) ([]mode.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := outputIndex(device)
	if err != nil {
		return nil, false
	}
	st := &m.outputs[idx]
	if !st.connected {
		return nil, false
	}
	modes := make([]mode.Info, len(st.connector.Modes))
	copy(modes, st.connector.Modes)
	return modes, true
}

// Pipeline exposes the resolved crtc and connector ids of a connected
// output, for diagnostics that drive the card directly
func (m *Manager) Pipeline(device DeviceID) (crtcID, connectorID uint32, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := outputIndex(device)
	if err != nil {
		return 0, 0, false
	}
	st := &m.outputs[idx]
	if !st.connected {
		return 0, 0, false
	}
	return st.crtc.ID, st.connector.ID, true
}

// SetPowerMode would drive the connector's DPMS property. The vendor driver
// this behavior is modeled on never wired that path up, so the observable
// contract is kept: warn and fail
func (m *Manager) SetPowerMode(device DeviceID, on bool) error {
	logrus.WithFields(logrus.Fields{
		"device": device,
		"on":     on,
	}).Warnln("DPMS request ignored")
	return ErrNotSupported
}

// WriteIoctl forwards a driver private command with a write-only payload.
// The output table is never touched
func (m *Manager) WriteIoctl(cmd uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	if err := m.card.CommandWrite(cmd, data); err != nil {
		logrus.WithError(err).WithField("cmd", cmd).Warnln("Driver command failed")
		return fmt.Errorf("driver command %#x: %w", cmd, err)
	}
	return nil
}

// WriteReadIoctl forwards a driver private command whose payload is written
// out and read back in place
func (m *Manager) WriteReadIoctl(cmd uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	if err := m.card.CommandWriteRead(cmd, data); err != nil {
		logrus.WithError(err).WithField("cmd", cmd).Warnln("Driver command failed")
		return fmt.Errorf("driver command %#x: %w", cmd, err)
	}
	return nil
}
