// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package kms

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/NeowayLabs/drm/mode"
)

// Connection states reported by a connector, matching the kernel ABI
const (
	Connected         uint8 = 1
	Disconnected      uint8 = 2
	UnknownConnection uint8 = 3
)

// A mode carrying this type bit is the one the display itself prefers
const ModeTypePreferred uint32 = 1 << 3

// Connector types from the kernel mode-setting ABI
const (
	ConnectorUnknown uint32 = iota
	ConnectorVGA
	ConnectorDVII
	ConnectorDVID
	ConnectorDVIA
	ConnectorComposite
	ConnectorSVideo
	ConnectorLVDS
	ConnectorComponent
	Connector9PinDIN
	ConnectorDisplayPort
	ConnectorHDMIA
	ConnectorHDMIB
	ConnectorTV
	ConnectorEDP
	ConnectorVirtual
	ConnectorDSI
	ConnectorDPI
)

// Encoder types from the kernel mode-setting ABI
const (
	EncoderNone uint32 = iota
	EncoderDAC
	EncoderTMDS
	EncoderLVDS
	EncoderTVDAC
	EncoderVirtual
	EncoderDSI
	EncoderDPMST
	EncoderDPI
)

var connectorNames = map[string]uint32{
	"vga":         ConnectorVGA,
	"dvi-i":       ConnectorDVII,
	"dvi-d":       ConnectorDVID,
	"dvi-a":       ConnectorDVIA,
	"composite":   ConnectorComposite,
	"svideo":      ConnectorSVideo,
	"lvds":        ConnectorLVDS,
	"component":   ConnectorComponent,
	"din":         Connector9PinDIN,
	"dp":          ConnectorDisplayPort,
	"displayport": ConnectorDisplayPort,
	"hdmi-a":      ConnectorHDMIA,
	"hdmi-b":      ConnectorHDMIB,
	"tv":          ConnectorTV,
	"edp":         ConnectorEDP,
	"virtual":     ConnectorVirtual,
	"dsi":         ConnectorDSI,
	"dpi":         ConnectorDPI,
}

var encoderNames = map[string]uint32{
	"none":    EncoderNone,
	"dac":     EncoderDAC,
	"tmds":    EncoderTMDS,
	"lvds":    EncoderLVDS,
	"tvdac":   EncoderTVDAC,
	"virtual": EncoderVirtual,
	"dsi":     EncoderDSI,
	"dpmst":   EncoderDPMST,
	"dpi":     EncoderDPI,
}

// ConnectorTypeFromName resolves a configured connector name ("HDMI-A",
// "eDP", ...) to its kernel type value. Names are matched case insensitively
func ConnectorTypeFromName(name string) (uint32, error) {
	typ, ok := connectorNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown connector type %q", name)
	}
	return typ, nil
}

// EncoderTypeFromName resolves a configured encoder name ("TMDS", "DSI", ...)
// to its kernel type value
func EncoderTypeFromName(name string) (uint32, error) {
	typ, ok := encoderNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown encoder type %q", name)
	}
	return typ, nil
}

// ModeName returns the display name embedded in a mode descriptor,
// without the trailing NUL padding the kernel leaves in place
func ModeName(info *mode.Info) string {
	name, _, _ := bytes.Cut(info.Name[:], []byte{0})
	return string(name)
}
