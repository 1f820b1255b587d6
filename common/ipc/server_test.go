package ipc

import (
	"testing"

	"github.com/NeowayLabs/drm/mode"

	"github.com/Omegaphora/kmsd/output"
)

type fakeManager struct {
	connected map[output.DeviceID]bool
	active    map[output.DeviceID]mode.Info
	modes     map[output.DeviceID][]mode.Info
	detectErr error
	setErr    error

	detected []output.DeviceID
	lastMode mode.Info
	lastRate int
}

func (f *fakeManager) Detect(device output.DeviceID) error {
	f.detected = append(f.detected, device)
	return f.detectErr
}

func (f *fakeManager) SetMode(device output.DeviceID, want mode.Info) error {
	f.lastMode = want
	return f.setErr
}

func (f *fakeManager) SetRefreshRate(device output.DeviceID, hz int) error {
	f.lastRate = hz
	return f.setErr
}

func (f *fakeManager) ModeInfo(device output.DeviceID) (mode.Info, bool) {
	info, ok := f.active[device]
	return info, ok
}

func (f *fakeManager) PhysicalSize(device output.DeviceID) (uint32, uint32, bool) {
	if !f.connected[device] {
		return 0, 0, false
	}
	return 600, 340, true
}

func (f *fakeManager) IsConnected(device output.DeviceID) bool {
	return f.connected[device]
}

func (f *fakeManager) Modes(device output.DeviceID) ([]mode.Info, bool) {
	modes, ok := f.modes[device]
	return modes, ok
}

func namedMode(width, height uint16, refresh uint32, preferred bool) mode.Info {
	info := mode.Info{Hdisplay: width, Vdisplay: height, Vrefresh: refresh}
	if preferred {
		info.Type = 1 << 3
	}
	name := []byte("test")
	copy(info.Name[:], name)
	return info
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		connected: map[output.DeviceID]bool{output.DeviceExternal: true},
		active: map[output.DeviceID]mode.Info{
			output.DeviceExternal: namedMode(1920, 1080, 60, true),
		},
		modes: map[output.DeviceID][]mode.Info{
			output.DeviceExternal: {
				namedMode(1280, 720, 60, false),
				namedMode(1920, 1080, 60, true),
			},
		},
	}
}

func TestHandleStatus(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	resp := srv.handle(Request{Action: "status"})
	if !resp.OK {
		t.Fatalf("status failed: %s", resp.Error)
	}
	if len(resp.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(resp.Outputs))
	}
	var external *OutputStatus
	for i := range resp.Outputs {
		if resp.Outputs[i].Name == output.DeviceExternal.String() {
			external = &resp.Outputs[i]
		}
	}
	if external == nil {
		t.Fatal("external output missing from status")
	}
	if !external.Connected {
		t.Error("external should report connected")
	}
	if external.Active == nil || external.Active.Width != 1920 {
		t.Errorf("external active mode wrong: %+v", external.Active)
	}
	if external.WidthMM != 600 || external.HeightMM != 340 {
		t.Errorf("physical size wrong: %dx%d", external.WidthMM, external.HeightMM)
	}
}

func TestHandleModes(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	resp := srv.handle(Request{Action: "modes", Output: "external"})
	if !resp.OK {
		t.Fatalf("modes failed: %s", resp.Error)
	}
	if len(resp.Modes) != 2 {
		t.Fatalf("expected 2 modes, got %d", len(resp.Modes))
	}
	if !resp.Modes[1].Preferred {
		t.Error("second mode should be preferred")
	}

	resp = srv.handle(Request{Action: "modes", Output: "primary"})
	if resp.OK {
		t.Error("modes on unresolved output should fail")
	}
}

func TestHandleDetect(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	resp := srv.handle(Request{Action: "detect", Output: "external"})
	if !resp.OK {
		t.Fatalf("detect failed: %s", resp.Error)
	}
	if len(mgr.detected) != 1 || mgr.detected[0] != output.DeviceExternal {
		t.Errorf("detect not forwarded: %v", mgr.detected)
	}
}

func TestHandleSetMode(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	resp := srv.handle(Request{Action: "set_mode", Output: "external", Width: 1280, Height: 720, Refresh: 60})
	if !resp.OK {
		t.Fatalf("set_mode failed: %s", resp.Error)
	}
	if mgr.lastMode.Hdisplay != 1280 || mgr.lastMode.Vdisplay != 720 || mgr.lastMode.Vrefresh != 60 {
		t.Errorf("requested mode not forwarded: %+v", mgr.lastMode)
	}
}

func TestHandleSetRate(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	resp := srv.handle(Request{Action: "set_rate", Output: "external", Refresh: 50})
	if !resp.OK {
		t.Fatalf("set_rate failed: %s", resp.Error)
	}
	if mgr.lastRate != 50 {
		t.Errorf("rate not forwarded, got %d", mgr.lastRate)
	}
}

func TestHandleBadRequests(t *testing.T) {
	mgr := newFakeManager()
	srv := &Server{mgr: mgr}

	if resp := srv.handle(Request{Action: "reboot"}); resp.OK {
		t.Error("unknown action should fail")
	}
	if resp := srv.handle(Request{Action: "detect", Output: "hdmi3"}); resp.OK {
		t.Error("unknown output name should fail")
	}
}
