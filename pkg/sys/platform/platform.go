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

package platform

import (
	"fmt"
	"runtime"
)

const (
	ArchX86_64  = "x86_64"
	ArchAarch64 = "aarch64"
	ArchArmv7l  = "armv7l"
)

// Platform describes the machine the installer runs on, using kernel
// architecture names as reported by uname, not Go's GOARCH values.
type Platform struct {
	OS   string
	Arch string
}

func New(os, arch string) (*Platform, error) {
	switch arch {
	case ArchX86_64, ArchAarch64, ArchArmv7l:
		return &Platform{OS: os, Arch: arch}, nil
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", arch)
	}
}

// NewDefault returns the platform of the running process.
func NewDefault() (*Platform, error) {
	return New(runtime.GOOS, archFromGoArch(runtime.GOARCH))
}

func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

func archFromGoArch(goArch string) string {
	switch goArch {
	case "amd64":
		return ArchX86_64
	case "arm64":
		return ArchAarch64
	case "arm":
		return ArchArmv7l
	default:
		return goArch
	}
}
