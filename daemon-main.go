// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/buffer"
	"github.com/Omegaphora/kmsd/common/ipc"
	"github.com/Omegaphora/kmsd/config"
	"github.com/Omegaphora/kmsd/kms"
	"github.com/Omegaphora/kmsd/output"
	"github.com/Omegaphora/kmsd/util/multiplexer"
)

// OutputEvent is published whenever a poll notices a connection change
type OutputEvent struct {
	Device    output.DeviceID
	Connected bool
}

func openManager(conf *config.Config) (*output.Manager, *kms.Device, *buffer.Dumb, error) {
	platform, err := conf.Platform()
	if err != nil {
		return nil, nil, nil, err
	}
	card, err := kms.Open(conf.CardPath)
	if err != nil {
		return nil, nil, nil, err
	}
	alloc, err := buffer.NewDumb(card.File(), uint32(platform.BPP))
	if err != nil {
		card.Close()
		return nil, nil, nil, err
	}
	return output.NewManager(card, alloc, platform), card, alloc, nil
}

func daemonMain(conf *config.Config) {
	if *help {
		daemonHelpMessage()
		return
	}

	mgr, _, _, err := openManager(conf)
	if err != nil {
		logrus.WithError(err).Fatalln("Opening display manager failed")
	}
	defer mgr.Close()
	if err := mgr.Initialize(); err != nil {
		logrus.WithError(err).Fatalln("Initializing display manager failed")
	}

	if err := mgr.Detect(output.DevicePrimary); err != nil {
		logrus.WithError(err).Errorln("Primary display detection failed")
	}
	if err := mgr.Detect(output.DeviceExternal); err != nil {
		logrus.WithError(err).Errorln("External display detection failed")
	}

	server, err := ipc.Listen(conf.SocketPath, mgr)
	if err != nil {
		logrus.WithError(err).Fatalln("Starting control socket failed")
	}
	go server.Serve()

	events := newEventPlexer()
	stopPoll := make(chan struct{})
	if conf.PollSeconds > 0 {
		go hotplugPoller(mgr, events, time.Duration(conf.PollSeconds)*time.Second, stopPoll)
	}

	quit := make(chan struct{})
	go replRunner(mgr, func() { close(quit) })

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logrus.WithField("signal", sig).Infoln("Shutting down")
	case <-quit:
		logrus.Infoln("Shutting down on repl request")
	}

	close(stopPoll)
	events.Close()
	server.Close()
}

func daemonHelpMessage() {
	fmt.Println("---- Help message for kmsd in daemon mode ----")
	fmt.Println("\nThe daemon keeps the kernel display pipeline configured and answers")
	fmt.Println("requests on a local control socket")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is the XDG config dir")
	fmt.Println("\t-tool: Run one-shot tools instead of the daemon")
	fmt.Println("\t-help: Show this help message (or the one for tool mode if -tool is set)")
	fmt.Println("\nWhile running, a repl on stdin accepts the same commands as the socket.")
	fmt.Println("Type \"help\" there for the list")
}

func newEventPlexer() *multiplexer.OneToMany[OutputEvent] {
	plexer := multiplexer.NewOneToMany[OutputEvent]()
	log, err := plexer.Subscribe("log", 8)
	if err != nil {
		logrus.WithError(err).Fatalln("Subscribing hotplug logger failed")
	}
	go func() {
		for ev := range log {
			logrus.WithFields(logrus.Fields{
				"device":    ev.Device,
				"connected": ev.Connected,
			}).Infoln("Display hotplug")
		}
	}()
	return plexer
}

// hotplugPoller re-runs detection on an interval and publishes connection
// transitions. Cheap stand-in for udev events, which the card nodes here
// don't always deliver
func hotplugPoller(mgr *output.Manager, events *multiplexer.OneToMany[OutputEvent], interval time.Duration, stop <-chan struct{}) {
	devices := []output.DeviceID{output.DevicePrimary, output.DeviceExternal}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		for _, device := range devices {
			was := mgr.IsConnected(device)
			if err := mgr.Detect(device); err != nil {
				logrus.WithError(err).WithField("device", device).Warnln("Hotplug poll detection failed")
				continue
			}
			now := mgr.IsConnected(device)
			if was != now {
				_ = events.Publish(OutputEvent{Device: device, Connected: now})
			}
		}
	}
}
