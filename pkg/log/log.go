/*
Copyright © 2025-2026 The VoidInstall authors
SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the printf style logging interface used across all packages.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Debug(format string, args ...any)
	SetDebugLevel()
}

type logger struct {
	l *logrus.Logger
}

type Option func(*logger)

// WithDiscardAll silences the logger entirely, mostly used in tests.
func WithDiscardAll() Option {
	return func(lg *logger) {
		lg.l.SetOutput(io.Discard)
	}
}

// WithWriter sets the logger output to the given writer.
func WithWriter(w io.Writer) Option {
	return func(lg *logger) {
		lg.l.SetOutput(w)
	}
}

// WithDebugLevel enables debug messages.
func WithDebugLevel() Option {
	return func(lg *logger) {
		lg.l.SetLevel(logrus.DebugLevel)
	}
}

func New(opts ...Option) Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	lg := &logger{l: l}
	for _, o := range opts {
		o(lg)
	}
	return lg
}

func (lg logger) Info(format string, args ...any) {
	lg.l.Infof(format, args...)
}

func (lg logger) Warn(format string, args ...any) {
	lg.l.Warnf(format, args...)
}

func (lg logger) Error(format string, args ...any) {
	lg.l.Errorf(format, args...)
}

func (lg logger) Debug(format string, args ...any) {
	lg.l.Debugf(format, args...)
}

func (lg logger) SetDebugLevel() {
	lg.l.SetLevel(logrus.DebugLevel)
}
