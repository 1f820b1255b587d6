// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/Omegaphora/kmsd/config"
)

var (
	configPath *string = flag.String(
		"config",
		"",
		"Path to the config file. Falls back to the XDG config dir, then built-in defaults",
	)
	toolMode *bool = flag.Bool(
		"tool",
		false,
		"Run one-shot display tools instead of the daemon",
	)
	help *bool = flag.Bool(
		"help",
		false,
		"Show a help message",
	)
)

func main() {
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatalln("Loading config failed")
	}
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logrus.WithField("level", conf.LogLevel).Warnln("Unknown log level, staying on info")
	} else {
		logrus.SetLevel(level)
	}

	if *toolMode {
		toolMain(conf)
	} else {
		daemonMain(conf)
	}
}
