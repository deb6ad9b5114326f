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

package sys

import (
	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys/platform"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

// System bundles every host facing dependency (command execution,
// filesystem, mount table, syscalls, logging) so components never reach
// for process wide globals.
type System struct {
	logger   log.Logger
	fs       vfs.FS
	mounter  Mounter
	runner   Runner
	syscall  Syscall
	platform *platform.Platform
}

type SystemOpts func(*System)

func WithLogger(logger log.Logger) SystemOpts {
	return func(s *System) {
		s.logger = logger
	}
}

func WithFS(fs vfs.FS) SystemOpts {
	return func(s *System) {
		s.fs = fs
	}
}

func WithMounter(mounter Mounter) SystemOpts {
	return func(s *System) {
		s.mounter = mounter
	}
}

func WithRunner(runner Runner) SystemOpts {
	return func(s *System) {
		s.runner = runner
	}
}

func WithSyscall(syscall Syscall) SystemOpts {
	return func(s *System) {
		s.syscall = syscall
	}
}

func WithPlatform(p *platform.Platform) SystemOpts {
	return func(s *System) {
		s.platform = p
	}
}

func NewSystem(opts ...SystemOpts) (*System, error) {
	s := &System{}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.New()
	}
	if s.fs == nil {
		s.fs = vfs.OSFS()
	}
	if s.mounter == nil {
		s.mounter = NewMounter()
	}
	if s.syscall == nil {
		s.syscall = &realSyscall{}
	}
	if s.runner == nil {
		s.runner = &realRunner{logger: s.logger}
	}
	if s.platform == nil {
		p, err := platform.NewDefault()
		if err != nil {
			return nil, err
		}
		s.platform = p
	}
	return s, nil
}

func (s System) Logger() log.Logger {
	return s.logger
}

func (s System) FS() vfs.FS {
	return s.fs
}

func (s System) Mounter() Mounter {
	return s.mounter
}

func (s System) Runner() Runner {
	return s.runner
}

func (s System) Syscall() Syscall {
	return s.syscall
}

func (s System) Platform() *platform.Platform {
	return s.platform
}
