// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package kms

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/NeowayLabs/drm"
	"github.com/NeowayLabs/drm/ioctl"
	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"
)

// Driver private commands start past the generic DRM command range
const commandBase = 0x40

// Card is the mode-setting surface of an open DRM node. The output manager
// talks to the hardware exclusively through this interface, which keeps the
// topology walk testable without a /dev/dri node
type Card interface {
	// Resources enumerates the connector, encoder and crtc ids of the card
	Resources() (*mode.Resources, error)
	// Connector fetches the full descriptor for one connector id
	Connector(id uint32) (*mode.Connector, error)
	// Encoder fetches the descriptor for one encoder id
	Encoder(id uint32) (*mode.Encoder, error)
	// Crtc fetches the descriptor for one crtc id
	Crtc(id uint32) (*mode.Crtc, error)
	// AddFB registers a framebuffer object over allocated memory and
	// returns its id
	AddFB(width, height uint16, depth, bpp uint8, pitch, handle uint32) (uint32, error)
	// RmFB drops a framebuffer object registration
	RmFB(id uint32) error
	// SetCrtc programs a crtc to scan out the given framebuffer to the
	// given connector with the given timings, at offset (0,0)
	SetCrtc(crtcID, fbID, connectorID uint32, info *mode.Info) error
	// CommandWrite forwards a driver private command with a write-only
	// payload
	CommandWrite(cmd uint32, data []byte) error
	// CommandWriteRead forwards a driver private command whose payload is
	// written to the driver and read back in place
	CommandWriteRead(cmd uint32, data []byte) error
	Close() error
}

// Device is a Card backed by an open mode-setting device node
type Device struct {
	file *os.File
}

// Open opens the mode-setting node at path for read/write
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening drm device %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"path": path,
		"fd":   file.Fd(),
	}).Debugln("Opened drm device")
	return &Device{file: file}, nil
}

// File exposes the underlying node, for collaborators (the dumb buffer
// allocator) that issue their own ioctls against the same card
func (d *Device) File() *os.File {
	return d.file
}

func (d *Device) Resources() (*mode.Resources, error) {
	return mode.GetResources(d.file)
}

func (d *Device) Connector(id uint32) (*mode.Connector, error) {
	return mode.GetConnector(d.file, id)
}

func (d *Device) Encoder(id uint32) (*mode.Encoder, error) {
	return mode.GetEncoder(d.file, id)
}

func (d *Device) Crtc(id uint32) (*mode.Crtc, error) {
	return mode.GetCrtc(d.file, id)
}

func (d *Device) AddFB(width, height uint16, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	return mode.AddFB(d.file, width, height, depth, bpp, pitch, handle)
}

func (d *Device) RmFB(id uint32) error {
	return mode.RmFB(d.file, id)
}

func (d *Device) SetCrtc(crtcID, fbID, connectorID uint32, info *mode.Info) error {
	return mode.SetCrtc(d.file, crtcID, fbID, 0, 0, &connectorID, 1, info)
}

func (d *Device) CommandWrite(cmd uint32, data []byte) error {
	code := ioctl.NewCode(ioctl.Write,
		uint16(len(data)), drm.IOCTLBase, uint8(commandBase+cmd))
	return ioctl.Do(uintptr(d.file.Fd()), uintptr(code),
		uintptr(unsafe.Pointer(&data[0])))
}

func (d *Device) CommandWriteRead(cmd uint32, data []byte) error {
	code := ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(len(data)), drm.IOCTLBase, uint8(commandBase+cmd))
	return ioctl.Do(uintptr(d.file.Fd()), uintptr(code),
		uintptr(unsafe.Pointer(&data[0])))
}

func (d *Device) Close() error {
	return d.file.Close()
}
