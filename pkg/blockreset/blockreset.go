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

package blockreset

import (
	"sort"
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/block/lsblk"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

const defaultWorkRoot = "/mnt"

// Resetter tears down block state left behind by a previous installation
// attempt: mounts under the work root, active swap, open crypt mappings
// and active LVM volume groups. Every step is best effort, a device that
// refuses to let go is logged and skipped so a retry can still proceed.
type Resetter struct {
	s        *sys.System
	workRoot string
}

type Opts func(r *Resetter)

func WithWorkRoot(root string) Opts {
	return func(r *Resetter) {
		r.workRoot = root
	}
}

func New(s *sys.System, opts ...Opts) *Resetter {
	r := &Resetter{s: s, workRoot: defaultWorkRoot}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reset runs all teardown steps in dependency order against the given
// target disk. It never fails, the caller always continues to partitioning
// which will surface any device that is genuinely stuck.
func (r Resetter) Reset(disk string) error {
	r.unmountWorkTree()
	r.disableSwap()
	// volume groups may sit on top of a crypt mapping, deactivate them
	// first so the mapping is free to close
	r.deactivateVolumeGroups()
	r.closeCryptMappings()
	r.sweepDiskPartitions(disk)
	r.s.Syscall().Sync()
	return nil
}

// unmountWorkTree lazily unmounts everything below the work root, deepest
// paths first so nested binds go before their parents.
func (r Resetter) unmountWorkTree() {
	mounts, err := r.s.Mounter().List()
	if err != nil {
		r.s.Logger().Warn("Could not list mount points: %s", err.Error())
		return
	}

	var paths []string
	for _, mnt := range mounts {
		if mnt.Path == r.workRoot || strings.HasPrefix(mnt.Path, r.workRoot+"/") {
			paths = append(paths, mnt.Path)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.Count(paths[i], "/") > strings.Count(paths[j], "/")
	})

	for _, path := range paths {
		r.s.Logger().Debug("Unmounting '%s'", path)
		if err = r.s.Mounter().UnmountLazy(path); err != nil {
			r.s.Logger().Warn("Could not unmount '%s': %s", path, err.Error())
		}
	}
}

// disableSwap turns off any active swap device found by signature.
func (r Resetter) disableSwap() {
	out, err := r.s.Runner().Run("blkid", "-t", "TYPE=swap", "-o", "device")
	if err != nil {
		// blkid exits non-zero when nothing matches
		r.s.Logger().Debug("No swap devices found")
		return
	}
	for _, device := range strings.Fields(string(out)) {
		r.s.Logger().Debug("Disabling swap on '%s'", device)
		if _, err = r.s.Runner().Run("swapoff", device); err != nil {
			r.s.Logger().Warn("Could not disable swap on '%s': %s", device, err.Error())
		}
	}
}

// closeCryptMappings closes every device-mapper target of type crypt.
func (r Resetter) closeCryptMappings() {
	out, err := r.s.Runner().Run("dmsetup", "ls", "--target", "crypt")
	if err != nil {
		r.s.Logger().Warn("Could not list crypt mappings: %s", err.Error())
		return
	}
	output := strings.TrimSpace(string(out))
	if output == "" || strings.HasPrefix(output, "No devices found") {
		return
	}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		r.s.Logger().Debug("Closing crypt mapping '%s'", name)
		if _, err = r.s.Runner().Run("cryptsetup", "close", name); err != nil {
			r.s.Logger().Warn("Could not close crypt mapping '%s': %s", name, err.Error())
		}
	}
}

// sweepDiskPartitions unmounts any partition of the target disk that is
// still mounted somewhere outside the work root, so the signature wipe
// that follows does not hit a busy device.
func (r Resetter) sweepDiskPartitions(disk string) {
	if disk == "" {
		return
	}
	parts, err := lsblk.NewLsDevice(r.s).GetDevicePartitions(disk)
	if err != nil {
		r.s.Logger().Warn("Could not list partitions of '%s': %s", disk, err.Error())
		return
	}
	for _, part := range parts {
		for _, mnt := range part.MountPoints {
			r.s.Logger().Debug("Unmounting '%s' ('%s')", mnt, part.Path)
			if err = r.s.Mounter().UnmountLazy(mnt); err != nil {
				r.s.Logger().Warn("Could not unmount '%s': %s", mnt, err.Error())
			}
		}
	}
}

// deactivateVolumeGroups deactivates all LVM volume groups.
func (r Resetter) deactivateVolumeGroups() {
	if _, err := r.s.Runner().Run("vgchange", "-an"); err != nil {
		r.s.Logger().Warn("Could not deactivate volume groups: %s", err.Error())
	}
}
