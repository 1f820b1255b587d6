// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/NeowayLabs/drm/mode"
	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/kms"
	"github.com/Omegaphora/kmsd/output"
)

// DisplayManager is what the server needs from the output manager
type DisplayManager interface {
	Detect(device output.DeviceID) error
	SetMode(device output.DeviceID, want mode.Info) error
	SetRefreshRate(device output.DeviceID, hz int) error
	ModeInfo(device output.DeviceID) (mode.Info, bool)
	PhysicalSize(device output.DeviceID) (width, height uint32, ok bool)
	IsConnected(device output.DeviceID) bool
	Modes(device output.DeviceID) ([]mode.Info, bool)
}

// Server accepts control connections on a unix socket
type Server struct {
	mgr  DisplayManager
	ln   net.Listener
	path string
}

// Listen binds the control socket, replacing a stale one if present
func Listen(path string, mgr DisplayManager) (*Server, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("binding control socket %s: %w", path, err)
	}
	logrus.WithField("path", path).Infoln("Control socket ready")
	return &Server{mgr: mgr, ln: ln, path: path}, nil
}

// Serve accepts connections until the listener is closed
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.WithError(err).Errorln("Accepting control connection failed")
			}
			return
		}
		go s.handleConn(conn)
	}
}

// Close shuts the listener down and removes the socket
func (s *Server) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		var req Request
		resp := Response{}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp.Error = fmt.Sprintf("bad request: %s", err)
		} else {
			resp = s.handle(req)
		}
		if err := enc.Encode(resp); err != nil {
			logrus.WithError(err).Warnln("Writing control response failed")
			return
		}
	}
}

func (s *Server) handle(req Request) Response {
	switch req.Action {
	case "status":
		return Response{OK: true, Outputs: s.statusOutputs()}
	case "modes":
		device, err := output.ParseDevice(req.Output)
		if err != nil {
			return errorResponse(err)
		}
		modes, ok := s.mgr.Modes(device)
		if !ok {
			return Response{Error: "output not connected"}
		}
		out := make([]Mode, 0, len(modes))
		for i := range modes {
			out = append(out, toMode(&modes[i]))
		}
		return Response{OK: true, Modes: out}
	case "detect":
		device, err := output.ParseDevice(req.Output)
		if err != nil {
			return errorResponse(err)
		}
		if err := s.mgr.Detect(device); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Outputs: s.statusOutputs()}
	case "set_mode":
		device, err := output.ParseDevice(req.Output)
		if err != nil {
			return errorResponse(err)
		}
		want := mode.Info{
			Hdisplay: uint16(req.Width),
			Vdisplay: uint16(req.Height),
			Vrefresh: uint32(req.Refresh),
		}
		if err := s.mgr.SetMode(device, want); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}
	case "set_rate":
		device, err := output.ParseDevice(req.Output)
		if err != nil {
			return errorResponse(err)
		}
		if err := s.mgr.SetRefreshRate(device, req.Refresh); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true}
	default:
		return Response{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (s *Server) statusOutputs() []OutputStatus {
	devices := []output.DeviceID{output.DevicePrimary, output.DeviceExternal}
	statuses := make([]OutputStatus, 0, len(devices))
	for _, device := range devices {
		status := OutputStatus{
			Name:      device.String(),
			Connected: s.mgr.IsConnected(device),
		}
		if info, ok := s.mgr.ModeInfo(device); ok {
			active := toMode(&info)
			status.Active = &active
		}
		if w, h, ok := s.mgr.PhysicalSize(device); ok {
			status.WidthMM = int(w)
			status.HeightMM = int(h)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func toMode(info *mode.Info) Mode {
	return Mode{
		Name:      kms.ModeName(info),
		Width:     int(info.Hdisplay),
		Height:    int(info.Vdisplay),
		Refresh:   int(info.Vrefresh),
		Preferred: info.Type&kms.ModeTypePreferred != 0,
	}
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}
