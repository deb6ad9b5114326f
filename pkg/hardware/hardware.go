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

package hardware

import (
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

const (
	efiDir        = "/sys/firmware/efi"
	cpuinfoFile   = "/proc/cpuinfo"
	dmiVendorFile = "/sys/class/dmi/id/sys_vendor"
)

var vmVendors = []string{
	"qemu", "kvm", "virtualbox", "innotek", "vmware", "bochs",
	"microsoft", "xen", "parallels",
}

// DetectFirmware reports whether the host booted through UEFI or legacy
// BIOS.
func DetectFirmware(s *sys.System) deployment.Firmware {
	if ok, _ := vfs.IsDir(s.FS(), efiDir); ok {
		return deployment.UEFI
	}
	return deployment.BIOS
}

// IsVM detects whether the host runs inside a virtual machine, checking
// the hypervisor CPU flag and the DMI vendor string.
func IsVM(s *sys.System) bool {
	if data, err := s.FS().ReadFile(cpuinfoFile); err == nil {
		if strings.Contains(string(data), "hypervisor") {
			return true
		}
	}
	if data, err := s.FS().ReadFile(dmiVendorFile); err == nil {
		vendor := strings.ToLower(strings.TrimSpace(string(data)))
		for _, vm := range vmVendors {
			if strings.Contains(vendor, vm) {
				return true
			}
		}
	}
	return false
}

// GraphicsPackages inspects the PCI display controllers and returns the
// driver packages to install. Virtual machines get none, the modesetting
// driver in the base system covers them.
func GraphicsPackages(s *sys.System) []string {
	out, err := s.Runner().Run("lspci", "-nnk")
	if err != nil {
		s.Logger().Warn("Could not inspect PCI devices: %s", err.Error())
		return nil
	}

	seen := map[string]bool{}
	var packages []string
	add := func(pkgs ...string) {
		for _, p := range pkgs {
			if !seen[p] {
				seen[p] = true
				packages = append(packages, p)
			}
		}
	}

	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "vga") && !strings.Contains(lower, "3d controller") &&
			!strings.Contains(lower, "display controller") {
			continue
		}
		// Vendor tokens must be specific, every lspci display line
		// contains "compatible" and with it the substring "ati".
		switch {
		case strings.Contains(lower, "nvidia"):
			add("nvidia")
		case strings.Contains(lower, "advanced micro devices"), strings.Contains(lower, "[amd"):
			add("mesa-dri", "vulkan-loader", "mesa-vulkan-radeon", "xf86-video-amdgpu")
		case strings.Contains(lower, "intel"):
			add("mesa-dri", "vulkan-loader", "mesa-vulkan-intel", "intel-video-accel")
		}
	}
	return packages
}
