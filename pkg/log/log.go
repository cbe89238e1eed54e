// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the printf-style logging surface the rest of
// this repository calls, backed by logrus. It exists so call sites read
// Debugf("...", x)/Infof/Warningf rather than threading a *logrus.Logger
// (or its Fields) through every function signature.
package log

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var std atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	std.Store(l)
}

// SetLevel parses level (e.g. "debug", "info", "warn") and sets it on
// the package logger. An invalid level is reported and otherwise
// ignored.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.Load().SetLevel(lvl)
	return nil
}

// SetOutput redirects log output, e.g. to a fault-log file opened by
// cmd/lucetrun.
func SetOutput(w io.Writer) {
	std.Load().SetOutput(w)
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { std.Load().Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { std.Load().Infof(format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { std.Load().Warningf(format, args...) }

// Fatalf logs at fatal level and terminates the process, matching
// logrus.Logger.Fatalf.
func Fatalf(format string, args ...any) { std.Load().Fatalf(format, args...) }

// WithField returns an entry with a structured field attached, for call
// sites that want to tag several related log lines (instance name,
// signal number) without repeating them in every format string.
func WithField(key string, value any) *logrus.Entry {
	return std.Load().WithField(key, value)
}
