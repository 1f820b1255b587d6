// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package buffer supplies the graphics memory backing framebuffer objects.
// The output manager only depends on the Allocator interface, so tests can
// swap in an in-memory fake
package buffer

import (
	"fmt"
	"os"

	"github.com/NeowayLabs/drm"
	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Allocation describes one piece of framebuffer memory. Handle identifies it
// to the device and to Free, Pitch is the row stride in bytes
type Allocation struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// Allocator hands out framebuffer memory sized for a display mode
type Allocator interface {
	Alloc(width, height uint16) (Allocation, error)
	Free(handle uint32) error
}

// Dumb allocates kernel dumb buffers on a mode-setting node
type Dumb struct {
	file *os.File
	bpp  uint32
}

// NewDumb builds an allocator for the given open card node. Fails if the
// driver does not support dumb buffers
func NewDumb(file *os.File, bpp uint32) (*Dumb, error) {
	if !drm.HasDumbBuffer(file) {
		return nil, fmt.Errorf("device %s has no dumb buffer support", file.Name())
	}
	return &Dumb{file: file, bpp: bpp}, nil
}

func (d *Dumb) Alloc(width, height uint16) (Allocation, error) {
	fb, err := mode.CreateFB(d.file, width, height, d.bpp)
	if err != nil {
		return Allocation{}, fmt.Errorf("creating %dx%d dumb buffer: %w", width, height, err)
	}
	logrus.WithFields(logrus.Fields{
		"handle": fb.Handle,
		"pitch":  fb.Pitch,
		"size":   fb.Size,
	}).Debugln("Allocated dumb buffer")
	return Allocation{Handle: fb.Handle, Pitch: fb.Pitch, Size: fb.Size}, nil
}

func (d *Dumb) Free(handle uint32) error {
	return mode.DestroyDumb(d.file, handle)
}

// Map maps an allocation into the process for drawing into it
func (d *Dumb) Map(a Allocation) ([]byte, error) {
	offset, err := mode.MapDumb(d.file, a.Handle)
	if err != nil {
		return nil, fmt.Errorf("mapping dumb buffer %d: %w", a.Handle, err)
	}
	buf, err := unix.Mmap(int(d.file.Fd()), int64(offset), int(a.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap of dumb buffer %d: %w", a.Handle, err)
	}
	return buf, nil
}

// Unmap releases a mapping made by Map
func Unmap(buf []byte) error {
	return unix.Munmap(buf)
}
