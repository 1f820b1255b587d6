package kms

import (
	"testing"

	"github.com/NeowayLabs/drm/mode"
)

func TestConnectorTypeFromName(t *testing.T) {
	for name, want := range map[string]uint32{
		"DSI":         ConnectorDSI,
		"hdmi-a":      ConnectorHDMIA,
		"eDP":         ConnectorEDP,
		"DisplayPort": ConnectorDisplayPort,
	} {
		got, err := ConnectorTypeFromName(name)
		if err != nil {
			t.Errorf("%s: %s", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", name, got, want)
		}
	}
	if _, err := ConnectorTypeFromName("scart"); err == nil {
		t.Error("unknown connector name should fail")
	}
}

func TestEncoderTypeFromName(t *testing.T) {
	got, err := EncoderTypeFromName("tmds")
	if err != nil {
		t.Fatalf("tmds: %s", err)
	}
	if got != EncoderTMDS {
		t.Errorf("tmds: got %d, want %d", got, EncoderTMDS)
	}
	if _, err := EncoderTypeFromName("warp"); err == nil {
		t.Error("unknown encoder name should fail")
	}
}

func TestModeName(t *testing.T) {
	var info mode.Info
	copy(info.Name[:], "1920x1080")
	if got := ModeName(&info); got != "1920x1080" {
		t.Errorf("got %q", got)
	}
	if got := ModeName(&mode.Info{}); got != "" {
		t.Errorf("empty name should stay empty, got %q", got)
	}
}
