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
	"golang.org/x/sys/unix"
)

// Syscall wraps the few raw system calls the installer needs, so tests can
// intercept them.
type Syscall interface {
	Chroot(path string) error
	Chdir(path string) error
	Fchdir(fd int) error
	// Sync flushes filesystem buffers, issued around partition table
	// mutations so the kernel and the tools observe the same state.
	Sync()
	Geteuid() int
}

type realSyscall struct{}

var _ Syscall = (*realSyscall)(nil)

func (r realSyscall) Chroot(path string) error {
	return unix.Chroot(path)
}

func (r realSyscall) Chdir(path string) error {
	return unix.Chdir(path)
}

func (r realSyscall) Fchdir(fd int) error {
	return unix.Fchdir(fd)
}

func (r realSyscall) Sync() {
	unix.Sync()
}

func (r realSyscall) Geteuid() int {
	return unix.Geteuid()
}
