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

package mock

import (
	"fmt"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

// Syscall is a test double recording chroot transitions without
// performing them.
type Syscall struct {
	ErrorOnChroot bool
	Euid          int

	chrootCalls []string
	SyncCalls   int
}

var _ sys.Syscall = (*Syscall)(nil)

func (s *Syscall) Chroot(path string) error {
	if s.ErrorOnChroot {
		return fmt.Errorf("chroot error")
	}
	s.chrootCalls = append(s.chrootCalls, path)
	return nil
}

func (s *Syscall) Chdir(_ string) error {
	return nil
}

func (s *Syscall) Fchdir(_ int) error {
	return nil
}

func (s *Syscall) Sync() {
	s.SyncCalls++
}

func (s *Syscall) Geteuid() int {
	return s.Euid
}

// WasChrootedTo reports whether a chroot to the given path was requested.
func (s *Syscall) WasChrootedTo(path string) bool {
	for _, p := range s.chrootCalls {
		if p == path {
			return true
		}
	}
	return false
}
