// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/kms"
	"github.com/Omegaphora/kmsd/output"
)

// OutputSection names the pipeline types expected for one logical output.
// Names are the kernel ones ("DSI", "HDMI-A", "eDP", "TMDS", ...)
type OutputSection struct {
	Connector string `envconfig:"CONNECTOR,omitempty" toml:"connector,omitempty"`
	Encoder   string `envconfig:"ENCODER,omitempty" toml:"encoder,omitempty"`
}

// FramebufferSection is the pixel format used when registering framebuffer
// objects with the card
type FramebufferSection struct {
	Depth int `envconfig:"DEPTH,omitempty" toml:"depth,omitempty"`
	BPP   int `envconfig:"BPP,omitempty" toml:"bpp,omitempty"`
}

type Config struct {
	// CardPath is the mode-setting device node to open
	CardPath string `envconfig:"CARD_PATH,omitempty" toml:"card_path,omitempty"`
	// SocketPath is where the control socket is served
	SocketPath string `envconfig:"SOCKET_PATH,omitempty" toml:"socket_path,omitempty"`
	// LogLevel is a logrus level name
	LogLevel string `envconfig:"LOG_LEVEL,omitempty" toml:"log_level,omitempty"`
	// PollSeconds re-detects outputs this often to catch hotplugs.
	// 0 disables polling
	PollSeconds int `envconfig:"POLL_SECONDS,omitempty" toml:"poll_seconds,omitempty"`

	Framebuffer FramebufferSection `toml:"framebuffer,omitempty"`
	Primary     OutputSection      `toml:"primary,omitempty"`
	External    OutputSection      `toml:"external,omitempty"`
}

// Default returns the platform defaults: a DSI panel, an HDMI external
// connector and 24/32 framebuffers on the first card
func Default() *Config {
	return &Config{
		CardPath:    "/dev/dri/card0",
		SocketPath:  defaultSocketPath(),
		LogLevel:    "info",
		Framebuffer: FramebufferSection{Depth: 24, BPP: 32},
		Primary:     OutputSection{Connector: "DSI", Encoder: "DSI"},
		External:    OutputSection{Connector: "HDMI-A", Encoder: "TMDS"},
	}
}

func defaultSocketPath() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, "kmsd.sock")
	}
	return "/tmp/kmsd.sock"
}

// Load reads the config at path, or the XDG default location when path is
// empty. A missing file is not an error, the defaults apply
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		found, err := xdg.SearchConfigFile("kmsd/config.toml")
		if err != nil {
			logrus.Debugln("No config file found, using defaults")
			return cfg, nil
		}
		path = found
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	logrus.WithField("path", path).Debugln("Loaded config")
	return cfg, nil
}

// Platform resolves the configured type names into the static table the
// output manager consumes
func (c *Config) Platform() (output.Platform, error) {
	var p output.Platform
	var err error

	if p.Primary.Connector, err = kms.ConnectorTypeFromName(c.Primary.Connector); err != nil {
		return p, fmt.Errorf("primary output: %w", err)
	}
	if p.Primary.Encoder, err = kms.EncoderTypeFromName(c.Primary.Encoder); err != nil {
		return p, fmt.Errorf("primary output: %w", err)
	}
	if p.External.Connector, err = kms.ConnectorTypeFromName(c.External.Connector); err != nil {
		return p, fmt.Errorf("external output: %w", err)
	}
	if p.External.Encoder, err = kms.EncoderTypeFromName(c.External.Encoder); err != nil {
		return p, fmt.Errorf("external output: %w", err)
	}
	if c.Framebuffer.Depth <= 0 || c.Framebuffer.Depth > 32 {
		return p, fmt.Errorf("framebuffer depth %d out of range", c.Framebuffer.Depth)
	}
	if c.Framebuffer.BPP <= 0 || c.Framebuffer.BPP > 32 {
		return p, fmt.Errorf("framebuffer bpp %d out of range", c.Framebuffer.BPP)
	}
	p.Depth = uint8(c.Framebuffer.Depth)
	p.BPP = uint8(c.Framebuffer.BPP)
	return p, nil
}
