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

package mount

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

const (
	defaultWorkRoot = "/mnt"
	fstabFile       = "/etc/fstab"
)

// Step is a single device to prepare. MountPoint is the absolute path
// inside the installed system, empty for swap devices.
type Step struct {
	Device     string
	MountPoint string
	FileSystem deployment.FileSystem
	Label      string
	// PreFormatted skips mkfs, set when the filesystem was prepared
	// elsewhere or the device was manually partitioned and confirmed.
	PreFormatted bool
}

// Assembler formats the planned devices and mounts them under the work
// root in path order, parents before children.
type Assembler struct {
	s        *sys.System
	workRoot string
	// confirm is consulted before destroying an existing filesystem
	// signature, nil meaning reformat without asking
	confirm func(device, fs string) (bool, error)
}

type Opts func(a *Assembler)

func WithWorkRoot(root string) Opts {
	return func(a *Assembler) {
		a.workRoot = root
	}
}

func WithReformatConfirm(f func(device, fs string) (bool, error)) Opts {
	return func(a *Assembler) {
		a.confirm = f
	}
}

func New(s *sys.System, opts ...Opts) *Assembler {
	a := &Assembler{s: s, workRoot: defaultWorkRoot}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a Assembler) WorkRoot() string {
	return a.workRoot
}

// Assemble formats every step and mounts the filesystem carrying ones
// under the work root. Mount order follows path depth so '/' is mounted
// before '/boot' before '/boot/efi' regardless of the input order.
func (a Assembler) Assemble(steps []Step) error {
	for _, step := range steps {
		if err := a.format(step); err != nil {
			return err
		}
	}

	mountSteps := make([]Step, 0, len(steps))
	for _, step := range steps {
		if step.FileSystem == deployment.SwapFS {
			if _, err := a.s.Runner().Run("swapon", step.Device); err != nil {
				return fmt.Errorf("enabling swap on '%s': %w", step.Device, err)
			}
			continue
		}
		if step.MountPoint == "" || step.FileSystem == deployment.NoFS {
			continue
		}
		mountSteps = append(mountSteps, step)
	}
	sort.SliceStable(mountSteps, func(i, j int) bool {
		return pathDepth(mountSteps[i].MountPoint) < pathDepth(mountSteps[j].MountPoint)
	})

	for _, step := range mountSteps {
		target := filepath.Join(a.workRoot, step.MountPoint)
		if err := vfs.MkdirAll(a.s.FS(), target, vfs.DirPerm); err != nil {
			return fmt.Errorf("creating mount point '%s': %w", target, err)
		}
		a.s.Logger().Info("Mounting '%s' at '%s'", step.Device, target)
		err := a.s.Mounter().Mount(step.Device, target, step.FileSystem.String(), []string{"rw"})
		if err != nil {
			return fmt.Errorf("mounting '%s' at '%s': %w", step.Device, target, err)
		}
	}
	return nil
}

// format creates the filesystem for the step unless it is preformatted.
// With a confirm callback set, an existing signature on the device has to
// be acknowledged before it gets destroyed.
func (a Assembler) format(step Step) error {
	if step.FileSystem == deployment.NoFS || step.PreFormatted {
		return nil
	}
	if a.confirm != nil {
		if existing := a.probeFS(step.Device); existing != "" {
			ok, err := a.confirm(step.Device, existing)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("refusing to reformat '%s' holding a %s filesystem", step.Device, existing)
			}
		}
	}

	a.s.Logger().Info("Formatting '%s' as %s", step.Device, step.FileSystem.String())
	var err error
	switch step.FileSystem {
	case deployment.Ext4:
		args := []string{"-F"}
		if step.Label != "" {
			args = append(args, "-L", step.Label)
		}
		args = append(args, step.Device)
		_, err = a.s.Runner().Run("mkfs.ext4", args...)
	case deployment.VFat:
		args := []string{"-F32"}
		if step.Label != "" {
			args = append(args, "-n", step.Label)
		}
		args = append(args, step.Device)
		_, err = a.s.Runner().Run("mkfs.vfat", args...)
	case deployment.SwapFS:
		args := []string{}
		if step.Label != "" {
			args = append(args, "-L", step.Label)
		}
		args = append(args, step.Device)
		_, err = a.s.Runner().Run("mkswap", args...)
	default:
		return fmt.Errorf("unsupported filesystem '%s' for device '%s'", step.FileSystem.String(), step.Device)
	}
	if err != nil {
		return fmt.Errorf("formatting '%s': %w", step.Device, err)
	}
	return nil
}

func (a Assembler) probeFS(device string) string {
	out, err := a.s.Runner().Run("blkid", "-s", "TYPE", "-o", "value", device)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// WriteFstab generates the fstab of the installed system. Plain partitions
// are referenced by UUID, device-mapper and LVM nodes keep their stable
// path.
func (a Assembler) WriteFstab(steps []Step) error {
	var lines []string
	lines = append(lines, "# generated by voidinstall")

	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return pathDepth(ordered[i].MountPoint) < pathDepth(ordered[j].MountPoint)
	})

	for _, step := range ordered {
		if step.FileSystem == deployment.NoFS {
			continue
		}
		source, err := a.fstabSource(step.Device)
		if err != nil {
			return err
		}
		switch {
		case step.FileSystem == deployment.SwapFS:
			lines = append(lines, fmt.Sprintf("%s none swap sw 0 0", source))
		case step.MountPoint == deployment.RootMnt:
			lines = append(lines, fmt.Sprintf("%s / %s defaults 0 1", source, step.FileSystem.String()))
		default:
			lines = append(lines, fmt.Sprintf("%s %s %s defaults 0 2", source, step.MountPoint, step.FileSystem.String()))
		}
	}
	lines = append(lines, "tmpfs /tmp tmpfs defaults,nosuid,nodev 0 0", "")

	path := filepath.Join(a.workRoot, fstabFile)
	if err := vfs.MkdirAll(a.s.FS(), filepath.Dir(path), vfs.DirPerm); err != nil {
		return fmt.Errorf("creating '%s': %w", filepath.Dir(path), err)
	}
	err := a.s.FS().WriteFile(path, []byte(strings.Join(lines, "\n")), vfs.FilePerm)
	if err != nil {
		return fmt.Errorf("writing fstab: %w", err)
	}
	return nil
}

func (a Assembler) fstabSource(device string) (string, error) {
	// device-mapper and LVM nodes already have stable paths
	if strings.HasPrefix(device, "/dev/mapper/") || strings.Count(device, "/") > 2 {
		return device, nil
	}
	out, err := a.s.Runner().Run("blkid", "-s", "UUID", "-o", "value", device)
	if err != nil {
		return "", fmt.Errorf("reading UUID of '%s': %w", device, err)
	}
	uuid := strings.TrimSpace(string(out))
	if uuid == "" {
		return device, nil
	}
	return "UUID=" + uuid, nil
}

func pathDepth(path string) int {
	path = filepath.Clean(path)
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}
