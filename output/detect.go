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

// Detect re-synchronizes one output slot with the hardware topology. It
// always starts from a clean slate: the slot is reset before the scan, and
// reset again if the scan does not succeed, so a failed detect never leaves
// a half-populated slot behind.
//
// A connector of the expected type that reports no display, or a secondary
// output whose connector does not exist at all, counts as a successful
// detection of an absent display
func (m *Manager) Detect(device DeviceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	idx, err := outputIndex(device)
	if err != nil {
		return err
	}

	m.resetOutputLocked(idx)

	res, err := m.card.Resources()
	if err != nil {
		logrus.WithError(err).Errorln("Querying drm resources failed")
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}

	class := m.platform.class(device)
	st := &m.outputs[idx]

	ok := false
	var detectErr error

	for _, id := range res.Connectors {
		conn, err := m.card.Connector(id)
		if err != nil {
			logrus.WithError(err).WithField("connector", id).Errorln("Fetching connector failed")
			continue
		}
		if conn.Type != class.Connector {
			continue
		}

		// First connector of the expected type wins, whatever its
		// connection state
		if conn.Connection != kms.Connected {
			logrus.WithField("device", device).Infoln("Display not connected")
			ok = true
			break
		}

		st.connector = conn
		st.connected = true

		st.encoder = m.resolveEncoder(res, conn, device, class)
		if st.encoder == nil {
			detectErr = fmt.Errorf("%w: no usable encoder for %s", ErrTopology, device)
			break
		}

		st.crtc = m.resolveCrtc(res, st.encoder, device)
		if st.crtc == nil {
			detectErr = fmt.Errorf("%w: no usable crtc for %s", ErrTopology, device)
			break
		}

		if st.crtc.ModeValid != 0 {
			// The kernel already drives a mode on this crtc; adopt
			// it instead of re-programming and flickering the panel
			logrus.WithField("device", device).Infoln("Keeping kernel-set mode")
			st.active = st.crtc.Mode
			ok = true
		} else {
			logrus.WithField("device", device).Infoln("No valid mode, programming the preferred one")
			if detectErr = m.initModeLocked(idx); detectErr == nil {
				ok = true
			}
		}
		break
	}

	if !ok {
		if st.connector == nil && idx != outputPrimary {
			// Only the primary panel has to exist. A secondary
			// output with no connector at all is simply absent
			logrus.WithField("device", device).Warnln("Output seems disabled, ignoring")
			ok = true
			detectErr = nil
		} else if detectErr == nil {
			detectErr = fmt.Errorf("%w: no matching connector for %s", ErrTopology, device)
		}
		m.resetOutputLocked(idx)
	}
	if ok && st.connected {
		logrus.WithFields(logrus.Fields{
			"device":  device,
			"width":   st.active.Hdisplay,
			"height":  st.active.Vdisplay,
			"refresh": st.active.Vrefresh,
		}).Infoln("Display detected")
	}
	if !ok {
		return detectErr
	}
	return nil
}

// resolveEncoder prefers the encoder the connector is already attached to,
// then falls back to scanning every encoder on the card for the first one of
// the expected type. Encoders fetched but not kept are simply dropped
func (m *Manager) resolveEncoder(res *mode.Resources, conn *mode.Connector, device DeviceID, class DeviceClass) *mode.Encoder {
	if conn.EncoderID != 0 {
		logrus.WithField("device", device).Debugln("Connector has an encoder attached")
		enc, err := m.card.Encoder(conn.EncoderID)
		if err == nil {
			return enc
		}
		logrus.WithError(err).Warnln("Fetching the attached encoder failed, scanning")
	}
	for _, id := range res.Encoders {
		enc, err := m.card.Encoder(id)
		if err != nil {
			logrus.WithError(err).WithField("encoder", id).Errorln("Fetching encoder failed")
			continue
		}
		if enc.Type == class.Encoder {
			return enc
		}
	}
	return nil
}

// resolveCrtc prefers the crtc the encoder is already bound to, then falls
// back to the first spare crtc, one with no framebuffer currently attached
func (m *Manager) resolveCrtc(res *mode.Resources, enc *mode.Encoder, device DeviceID) *mode.Crtc {
	if enc.CrtcID != 0 {
		logrus.WithField("device", device).Debugln("Encoder has a crtc attached")
		crtc, err := m.card.Crtc(enc.CrtcID)
		if err == nil {
			return crtc
		}
		logrus.WithError(err).Warnln("Fetching the attached crtc failed, scanning for a spare")
	}
	for _, id := range res.Crtcs {
		crtc, err := m.card.Crtc(id)
		if err != nil {
			logrus.WithError(err).WithField("crtc", id).Errorln("Fetching crtc failed")
			continue
		}
		if crtc.BufferID == 0 {
			return crtc
		}
	}
	return nil
}
