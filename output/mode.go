// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package output

import (
	"fmt"

	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/kms"
)

// sameMode reports whether value is already satisfied by base: identical
// active size and refresh rate, and every flag of value set in base
func sameMode(value, base *mode.Info) bool {
	return base.Hdisplay == value.Hdisplay &&
		base.Vdisplay == value.Vdisplay &&
		base.Vrefresh == value.Vrefresh &&
		base.Flags&value.Flags == value.Flags
}

// SetMode selects and applies a display mode on the external output. The
// connector's mode list is scanned for an entry matching want; if none
// matches, the display's preferred mode is used instead
func (m *Manager) SetMode(device DeviceID, want mode.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if device != DeviceExternal {
		logrus.WithField("device", device).Warnln("Mode changes are limited to the external output")
		return fmt.Errorf("%w: mode changes are limited to the external output", ErrInvalidDevice)
	}
	idx, err := outputIndex(device)
	if err != nil {
		return err
	}
	st := &m.outputs[idx]
	if !st.connected {
		return ErrNotConnected
	}
	if len(st.connector.Modes) == 0 {
		return fmt.Errorf("%w: connector reports no modes", ErrModeSet)
	}

	best := 0
	for i := range st.connector.Modes {
		candidate := &st.connector.Modes[i]
		if candidate.Type&kms.ModeTypePreferred != 0 {
			best = i
		}
		if sameMode(&want, candidate) {
			best = i
			break
		}
	}
	return m.setModeLocked(idx, &st.connector.Modes[best])
}

// SetRefreshRate switches the external output to the supported mode with the
// current resolution and the requested rate, falling back to the preferred
// mode when the display offers no such entry
func (m *Manager) SetRefreshRate(device DeviceID, hz int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if device != DeviceExternal {
		logrus.WithField("device", device).Warnln("Refresh rate changes are limited to the external output")
		return fmt.Errorf("%w: refresh rate changes are limited to the external output", ErrInvalidDevice)
	}
	idx, err := outputIndex(device)
	if err != nil {
		return err
	}
	st := &m.outputs[idx]
	if !st.connected {
		return ErrNotConnected
	}
	if len(st.connector.Modes) == 0 {
		return fmt.Errorf("%w: connector reports no modes", ErrModeSet)
	}

	best := 0
	for i := range st.connector.Modes {
		candidate := &st.connector.Modes[i]
		if candidate.Type&kms.ModeTypePreferred != 0 {
			best = i
		}
		if candidate.Hdisplay == st.active.Hdisplay &&
			candidate.Vdisplay == st.active.Vdisplay &&
			candidate.Vrefresh == uint32(hz) {
			best = i
			break
		}
	}
	return m.setModeLocked(idx, &st.connector.Modes[best])
}

// initModeLocked programs the display's preferred mode, used when detect
// finds a crtc without a valid mode. Needs m.mu
func (m *Manager) initModeLocked(idx int) error {
	st := &m.outputs[idx]
	if len(st.connector.Modes) == 0 {
		logrus.Errorln("Connector reports no modes")
		return fmt.Errorf("%w: connector reports no modes", ErrModeSet)
	}

	best := 0
	for i := range st.connector.Modes {
		if st.connector.Modes[i].Type&kms.ModeTypePreferred != 0 {
			best = i
			break
		}
	}
	return m.setModeLocked(idx, &st.connector.Modes[best])
}

// setModeLocked binds want as the active timing and framebuffer of the slot,
// or confirms it is already active. The old framebuffer pair is released
// only after the new one is registered, so the transition never leaves the
// crtc without backing. Needs m.mu
func (m *Manager) setModeLocked(idx int, want *mode.Info) error {
	st := &m.outputs[idx]

	if sameMode(want, &st.active) {
		logrus.Debugln("Requested mode already active")
		return nil
	}

	oldID, oldHandle := st.fbID, st.fbHandle
	st.fbID, st.fbHandle = 0, 0

	alloc, err := m.alloc.Alloc(want.Hdisplay, want.Vdisplay)
	if err != nil {
		logrus.WithError(err).Errorln("Allocating framebuffer memory failed")
		st.fbID, st.fbHandle = oldID, oldHandle
		return fmt.Errorf("%w: %v", ErrFramebufferAlloc, err)
	}
	st.fbHandle = alloc.Handle

	fbID, err := m.card.AddFB(want.Hdisplay, want.Vdisplay,
		m.platform.Depth, m.platform.BPP, alloc.Pitch, alloc.Handle)
	if err != nil {
		logrus.WithError(err).Errorln("Registering framebuffer failed")
		if ferr := m.alloc.Free(alloc.Handle); ferr != nil {
			logrus.WithError(ferr).WithField("handle", alloc.Handle).Warnln("Freeing framebuffer memory failed")
		}
		st.fbID, st.fbHandle = oldID, oldHandle
		return fmt.Errorf("%w: %v", ErrFramebufferRegister, err)
	}
	st.fbID = fbID

	logrus.WithFields(logrus.Fields{
		"width":   want.Hdisplay,
		"height":  want.Vdisplay,
		"refresh": want.Vrefresh,
	}).Infoln("Setting mode")

	err = m.card.SetCrtc(st.crtc.ID, st.fbID, st.connector.ID, want)
	if err == nil {
		st.active = *want
	} else {
		// The fresh framebuffer stays bound in the bookkeeping even
		// though the crtc rejected it; the caller learns via the error
		logrus.WithError(err).Errorln("Programming the crtc failed")
		err = fmt.Errorf("%w: %v", ErrModeSet, err)
	}

	if oldID != 0 {
		if rerr := m.card.RmFB(oldID); rerr != nil {
			logrus.WithError(rerr).WithField("fb", oldID).Warnln("Removing old framebuffer failed")
		}
	}
	if oldHandle != 0 {
		if ferr := m.alloc.Free(oldHandle); ferr != nil {
			logrus.WithError(ferr).WithField("handle", oldHandle).Warnln("Freeing old framebuffer memory failed")
		}
	}
	return err
}
