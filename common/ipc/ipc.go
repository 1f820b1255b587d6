// Package ipc is the control protocol of the daemon: newline-delimited JSON
// requests over a local socket, one response per request
package ipc

type (
	// Request is the envelope for every control message
	Request struct {
		// Action is one of "status", "modes", "detect", "set_mode",
		// "set_rate"
		Action string `json:"action"`
		// Output targets "primary" or "external". Every action except
		// status requires it
		Output string `json:"output,omitempty"`
		// Width/Height/Refresh describe the wanted mode for set_mode;
		// set_rate only reads Refresh
		Width   int `json:"width,omitempty"`
		Height  int `json:"height,omitempty"`
		Refresh int `json:"refresh,omitempty"`
	}

	// Mode is one entry of an output's supported mode list
	Mode struct {
		Name      string `json:"name,omitempty"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Refresh   int    `json:"refresh"`
		Preferred bool   `json:"preferred,omitempty"`
	}

	// OutputStatus describes one output slot
	OutputStatus struct {
		Name      string `json:"name"`
		Connected bool   `json:"connected"`
		// Active is only set while a connected display drives a mode
		Active *Mode `json:"active,omitempty"`
		// Physical size in millimeters, zero when unknown
		WidthMM  int `json:"width_mm,omitempty"`
		HeightMM int `json:"height_mm,omitempty"`
	}

	// Response answers one Request
	Response struct {
		OK      bool           `json:"ok"`
		Error   string         `json:"error,omitempty"`
		Outputs []OutputStatus `json:"outputs,omitempty"`
		Modes   []Mode         `json:"modes,omitempty"`
	}
)
