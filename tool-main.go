// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"image"
	"time"

	"github.com/NeowayLabs/drm/mode"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"

	"github.com/Omegaphora/kmsd/buffer"
	"github.com/Omegaphora/kmsd/config"
	"github.com/Omegaphora/kmsd/kms"
	"github.com/Omegaphora/kmsd/output"
)

var (
	toolAction *string = flag.String(
		"action",
		"outputs",
		"The action to perform. Can be one of:"+
			"\n\t- outputs: Show the state of both outputs"+
			"\n\t- modes <output>: List available modes for an output"+
			"\n\t- detect <output>: Re-run detection for an output"+
			"\n\t- pattern <output>: Put a test pattern on an output for a few seconds",
	)
	outputSelection *string = flag.String(
		"output",
		"external",
		"Output to perform the action on, \"primary\" or \"external\"",
	)
	patternSeconds *int = flag.Int(
		"seconds",
		5,
		"How long the test pattern stays up",
	)
)

func toolMain(conf *config.Config) {
	if *help {
		toolHelpMessage()
		return
	}

	mgr, card, alloc, err := openManager(conf)
	if err != nil {
		logrus.WithError(err).Fatalln("Opening display manager failed")
	}
	defer mgr.Close()
	if err := mgr.Initialize(); err != nil {
		logrus.WithError(err).Fatalln("Initializing display manager failed")
	}

	device, err := output.ParseDevice(*outputSelection)
	if err != nil {
		fmt.Println(err)
		return
	}

	switch *toolAction {
	case "outputs":
		detectAll(mgr)
		toolListOutputs(mgr)
	case "modes":
		detectAll(mgr)
		toolListModes(mgr, device)
	case "detect":
		if err := mgr.Detect(device); err != nil {
			fmt.Printf("Detection failed: %s\n", err)
			return
		}
		toolListOutputs(mgr)
	case "pattern":
		detectAll(mgr)
		if err := toolPattern(mgr, card, alloc, device, conf); err != nil {
			fmt.Printf("Test pattern failed: %s\n", err)
		}
	default:
		fmt.Printf("Unknown action %q\n", *toolAction)
	}
}

func detectAll(mgr *output.Manager) {
	for _, device := range []output.DeviceID{output.DevicePrimary, output.DeviceExternal} {
		if err := mgr.Detect(device); err != nil {
			logrus.WithError(err).WithField("device", device).Warnln("Detection failed")
		}
	}
}

func toolHelpMessage() {
	fmt.Println("---- Help message for kmsd in tool mode ----")
	fmt.Println("\nIn tool mode, kmsd offers one-shot helpers for inspecting and poking the display pipeline")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is the XDG config dir")
	fmt.Println("\t-tool: Start in tool mode instead of as a daemon")
	fmt.Println("\t-help: Show this help message (or the one for daemon mode if -tool is not set)")
	fmt.Println("\nTool flags:")
	fmt.Println("\t-action: The action to perform. Can be one of:")
	fmt.Println("\t\t- (default) outputs: Show the state of both outputs")
	fmt.Println("\t\t- modes: List available modes for an output. Use with -output")
	fmt.Println("\t\t- detect: Re-run detection for an output. Use with -output")
	fmt.Println("\t\t- pattern: Put a test pattern on an output. Use with -output and -seconds")
	fmt.Println("\t-output: Output to perform the action on, \"primary\" or \"external\"")
	fmt.Println("\t-seconds: How long the test pattern stays up")
}

func toolListOutputs(mgr *output.Manager) {
	for _, device := range []output.DeviceID{output.DevicePrimary, output.DeviceExternal} {
		if !mgr.IsConnected(device) {
			fmt.Printf("Output %s: not connected\n", device)
			continue
		}
		line := fmt.Sprintf("Output %s: connected", device)
		if info, ok := mgr.ModeInfo(device); ok {
			line += fmt.Sprintf(", %dx%d@%d", info.Hdisplay, info.Vdisplay, info.Vrefresh)
		}
		if w, h, ok := mgr.PhysicalSize(device); ok {
			line += fmt.Sprintf(", %dx%dmm", w, h)
		}
		fmt.Println(line)
	}
}

func toolListModes(mgr *output.Manager, device output.DeviceID) {
	modes, ok := mgr.Modes(device)
	if !ok {
		fmt.Printf("Output %s not connected\n", device)
		return
	}
	preferred := sliceutils.Filter(modes, func(info mode.Info) bool {
		return info.Type&kms.ModeTypePreferred != 0
	})
	fmt.Printf("Modes for output %s (%d preferred):\n", device, len(preferred))
	for i := range modes {
		info := &modes[i]
		if info.Type&kms.ModeTypePreferred != 0 {
			fmt.Printf("\t- %s %dx%d@%d (preferred)\n", kms.ModeName(info), info.Hdisplay, info.Vdisplay, info.Vrefresh)
		} else {
			fmt.Printf("\t- %s %dx%d@%d\n", kms.ModeName(info), info.Hdisplay, info.Vdisplay, info.Vrefresh)
		}
	}
}

// toolPattern scans color bars out on the given output, holds them for a few
// seconds and then restores whatever the crtc was showing before
func toolPattern(mgr *output.Manager, card *kms.Device, alloc *buffer.Dumb, device output.DeviceID, conf *config.Config) error {
	info, ok := mgr.ModeInfo(device)
	if !ok {
		return fmt.Errorf("output %s has no active mode", device)
	}
	crtcID, connectorID, ok := mgr.Pipeline(device)
	if !ok {
		return fmt.Errorf("output %s has no resolved pipeline", device)
	}
	saved, err := card.Crtc(crtcID)
	if err != nil {
		return fmt.Errorf("reading crtc %d: %w", crtcID, err)
	}

	alloced, err := alloc.Alloc(info.Hdisplay, info.Vdisplay)
	if err != nil {
		return err
	}
	defer alloc.Free(alloced.Handle)
	pixels, err := alloc.Map(alloced)
	if err != nil {
		return err
	}
	defer buffer.Unmap(pixels)
	drawColorBars(pixels, int(info.Hdisplay), int(info.Vdisplay), int(alloced.Pitch))

	fbID, err := card.AddFB(info.Hdisplay, info.Vdisplay,
		uint8(conf.Framebuffer.Depth), uint8(conf.Framebuffer.BPP), alloced.Pitch, alloced.Handle)
	if err != nil {
		return fmt.Errorf("registering pattern framebuffer: %w", err)
	}
	defer card.RmFB(fbID)

	if err := card.SetCrtc(crtcID, fbID, connectorID, &info); err != nil {
		return fmt.Errorf("showing pattern: %w", err)
	}
	time.Sleep(time.Duration(*patternSeconds) * time.Second)

	if err := card.SetCrtc(crtcID, saved.BufferID, connectorID, &saved.Mode); err != nil {
		return fmt.Errorf("restoring previous scanout: %w", err)
	}
	return nil
}

// drawColorBars renders the classic vertical bars and copies them into the
// XRGB8888 scanout buffer row by row, the pitch may exceed width*4
func drawColorBars(dst []byte, width, height, pitch int) {
	bars := []string{"#ffffff", "#ffff00", "#00ffff", "#00ff00", "#ff00ff", "#ff0000", "#0000ff", "#000000"}
	dc := gg.NewContext(width, height)
	barWidth := float64(width) / float64(len(bars))
	for i, hex := range bars {
		dc.SetHexColor(hex)
		dc.DrawRectangle(float64(i)*barWidth, 0, barWidth, float64(height))
		dc.Fill()
	}
	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride:]
		row := dst[y*pitch:]
		for x := 0; x < width; x++ {
			row[x*4+0] = src[x*4+2]
			row[x*4+1] = src[x*4+1]
			row[x*4+2] = src[x*4+0]
			row[x*4+3] = 0
		}
	}
}
