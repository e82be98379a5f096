// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package logging provides a shared, prefixed logrus logger for every
// component of the relay daemon.
package logging

import (
	"io"
	"sync"

	log_prefixed "github.com/chappjc/logrus-prefix"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

var (
	globalLogger   *logrus.Logger
	getLoggerMutex sync.Mutex
)

// GetLogger returns a logger entry tagged with prefix, sharing one
// underlying logrus.Logger (and therefore one level/output) across the
// whole process.
func GetLogger(prefix string) *logrus.Entry {
	if prefix == "" {
		prefix = "<no prefix>"
	}
	if globalLogger == nil {
		getLoggerMutex.Lock()
		defer getLoggerMutex.Unlock()
		if globalLogger == nil {
			l := logrus.New()
			l.SetFormatter(&log_prefixed.TextFormatter{
				FullTimestamp: true,
			})
			globalLogger = l
		}
	}
	return globalLogger.WithField("prefix", prefix)
}

// SetLevel sets the verbosity of the shared logger. verbosity follows the
// CLI's repeatable -v: 0 = warning, 1 = info, 2+ = debug.
func SetLevel(verbosity int) {
	l := GetLogger("").Logger
	switch {
	case verbosity <= 0:
		l.SetLevel(logrus.WarnLevel)
	case verbosity == 1:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.DebugLevel)
	}
}

// WithFile adds a file sink in addition to the existing output.
func WithFile(logfile string) {
	GetLogger("").Logger.AddHook(lfshook.NewHook(logfile, &logrus.TextFormatter{}))
}

// WithNoStdOutErr disables logging to stdout/stderr, used once daemonized.
func WithNoStdOutErr() {
	GetLogger("").Logger.SetOutput(io.Discard)
}
