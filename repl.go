package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/kms"
	"github.com/Omegaphora/kmsd/output"
	"github.com/Omegaphora/kmsd/repl"
	"github.com/Omegaphora/kmsd/util"
	"github.com/Omegaphora/kmsd/util/wrappers"
)

var errReplQuit = errors.New("normal stop")

func replRunner(mgr *output.Manager, shutdown func()) {
	// Give the repl some wrappers around stdin and stdout so that it closes those instead of stdin & stdout themselves
	commandRepl := repl.New(wrappers.NewGuardedReader(os.Stdin), wrappers.NewGuardedWriter(os.Stdout), "> ")
	logrus.Debugln("Starting repl")
	err := commandRepl.Run(func(input string, r *repl.Repl) (string, error) {
		return replHandle(mgr, input, shutdown)
	})
	if err != nil && !errors.Is(err, errReplQuit) {
		logrus.WithError(err).Warnln("Repl stopped")
	}
}

func replHandle(mgr *output.Manager, input string, shutdown func()) (string, error) {
	if input == "" {
		return "", nil
	}
	if input == "quit" {
		shutdown()
		return "Quitting", errReplQuit
	}
	if input == "help" {
		return replHelp(), nil
	}
	if input == "status" {
		return replStatus(mgr), nil
	}
	if rest, ok := strings.CutPrefix(input, "detect "); ok {
		device, err := output.ParseDevice(strings.TrimSpace(rest))
		if err != nil {
			return err.Error(), nil
		}
		if err := mgr.Detect(device); err != nil {
			return fmt.Sprintf("Detection failed: %s", err), nil
		}
		return replStatus(mgr), nil
	}
	if rest, ok := strings.CutPrefix(input, "modes "); ok {
		device, err := output.ParseDevice(strings.TrimSpace(rest))
		if err != nil {
			return err.Error(), nil
		}
		return replModes(mgr, device), nil
	}
	if rest, ok := strings.CutPrefix(input, "mode "); ok {
		// Can't unpack slices directly like in Python, so do it this roundabout way
		var outName, modeSpec string
		util.Unpack(strings.SplitN(strings.TrimSpace(rest), " ", 2), &outName, &modeSpec)
		device, err := output.ParseDevice(outName)
		if err != nil {
			return err.Error(), nil
		}
		var width, height, refresh int
		if _, err := fmt.Sscanf(modeSpec, "%dx%d@%d", &width, &height, &refresh); err != nil {
			return "Expected mode <output> <width>x<height>@<refresh>", nil
		}
		want := mode.Info{
			Hdisplay: uint16(width),
			Vdisplay: uint16(height),
			Vrefresh: uint32(refresh),
		}
		if err := mgr.SetMode(device, want); err != nil {
			return fmt.Sprintf("Mode set failed: %s", err), nil
		}
		return "Mode set", nil
	}
	if rest, ok := strings.CutPrefix(input, "rate "); ok {
		var outName, rateSpec string
		util.Unpack(strings.SplitN(strings.TrimSpace(rest), " ", 2), &outName, &rateSpec)
		device, err := output.ParseDevice(outName)
		if err != nil {
			return err.Error(), nil
		}
		var hz int
		if _, err := fmt.Sscanf(rateSpec, "%d", &hz); err != nil {
			return "Expected rate <output> <refresh>", nil
		}
		if err := mgr.SetRefreshRate(device, hz); err != nil {
			return fmt.Sprintf("Refresh rate set failed: %s", err), nil
		}
		return "Refresh rate set", nil
	}
	if rest, ok := strings.CutPrefix(input, "power "); ok {
		var outName, state string
		util.Unpack(strings.SplitN(strings.TrimSpace(rest), " ", 2), &outName, &state)
		device, err := output.ParseDevice(outName)
		if err != nil {
			return err.Error(), nil
		}
		if err := mgr.SetPowerMode(device, state == "on"); err != nil {
			return fmt.Sprintf("Power mode failed: %s", err), nil
		}
		return "Power mode set", nil
	}
	return "Unknown command, try \"help\"", nil
}

func replHelp() string {
	return strings.Join([]string{
		"Commands:",
		"\tstatus: Show both outputs",
		"\tdetect <output>: Re-run detection for an output",
		"\tmodes <output>: List the modes an output supports",
		"\tmode <output> <width>x<height>@<refresh>: Program a mode",
		"\trate <output> <refresh>: Change only the refresh rate",
		"\tpower <output> on|off: Change the power state",
		"\tquit: Stop the daemon",
	}, "\n")
}

func replStatus(mgr *output.Manager) string {
	lines := []string{}
	for _, device := range []output.DeviceID{output.DevicePrimary, output.DeviceExternal} {
		if !mgr.IsConnected(device) {
			lines = append(lines, fmt.Sprintf("%s: not connected", device))
			continue
		}
		line := fmt.Sprintf("%s: connected", device)
		if info, ok := mgr.ModeInfo(device); ok {
			line += fmt.Sprintf(", %dx%d@%d", info.Hdisplay, info.Vdisplay, info.Vrefresh)
		}
		if w, h, ok := mgr.PhysicalSize(device); ok {
			line += fmt.Sprintf(", %dx%dmm", w, h)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func replModes(mgr *output.Manager, device output.DeviceID) string {
	modes, ok := mgr.Modes(device)
	if !ok {
		return fmt.Sprintf("%s: not connected", device)
	}
	lines := []string{fmt.Sprintf("Modes for %s:", device)}
	for i := range modes {
		info := &modes[i]
		suffix := ""
		if info.Type&kms.ModeTypePreferred != 0 {
			suffix = " (preferred)"
		}
		lines = append(lines, fmt.Sprintf("\t- %s %dx%d@%d%s",
			kms.ModeName(info), info.Hdisplay, info.Vdisplay, info.Vrefresh, suffix))
	}
	return strings.Join(lines, "\n")
}
