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

package partitioner

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/docker/go-units"

	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

// PartitionPath computes the kernel device node of the numbered partition
// on the given disk. Devices whose name ends in a digit (nvme0n1, mmcblk0,
// loop0) take a 'p' separator before the partition number.
func PartitionPath(device string, num int) string {
	if device == "" {
		return ""
	}
	last := rune(device[len(device)-1])
	if unicode.IsDigit(last) {
		return fmt.Sprintf("%sp%d", device, num)
	}
	return fmt.Sprintf("%s%d", device, num)
}

// ParseSwapSize converts a human readable size such as "4G" or "512M" into
// MiB. Bare numbers are interpreted as GiB, which matches what most users
// mean when asked for a swap size.
func ParseSwapSize(size string) (deployment.MiB, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0, fmt.Errorf("empty swap size")
	}
	if !strings.ContainsFunc(size, unicode.IsLetter) {
		size += "G"
	}
	bytes, err := units.RAMInBytes(size)
	if err != nil {
		return 0, fmt.Errorf("invalid swap size '%s': %w", size, err)
	}
	if bytes <= 0 {
		return 0, fmt.Errorf("swap size must be positive, got '%s'", size)
	}
	return deployment.MiB(bytes / units.MiB), nil
}

// Plan computes the partition table for the given deployment settings.
// The resulting list is ordered by on-disk creation order:
//
//	UEFI:  EFI, [boot], root, [swap]
//	BIOS:  bios-boot, [boot], root, [swap]
//
// A separate /boot partition is only carved out when encryption is
// enabled, so GRUB can read kernels without unlocking the root volume.
// Requesting a swap partition caps root at a fixed size with swap taking
// the rest, otherwise root consumes the remaining disk. With LVM the swap
// volume lives inside the volume group instead of the partition table.
func Plan(d *deployment.Deployment) deployment.Partitions {
	var parts deployment.Partitions
	idx := 0
	next := func() int {
		idx++
		return idx
	}

	if d.Disk.Firmware == deployment.UEFI {
		parts = append(parts, &deployment.Partition{
			Index:      next(),
			Label:      deployment.EfiLabel,
			Role:       deployment.EFI,
			FileSystem: deployment.VFat,
			Size:       deployment.EfiSize,
			MountPoint: deployment.EfiMnt,
		})
	} else {
		parts = append(parts, &deployment.Partition{
			Index:      next(),
			Role:       deployment.BiosBoot,
			FileSystem: deployment.NoFS,
			Size:       deployment.BiosBootSize,
		})
	}

	if d.Encryption.Enabled {
		parts = append(parts, &deployment.Partition{
			Index:      next(),
			Label:      deployment.BootLabel,
			Role:       deployment.Boot,
			FileSystem: deployment.Ext4,
			Size:       deployment.BootSize,
			MountPoint: deployment.BootMnt,
		})
	}

	swapPart := d.Swap.Enabled && !(d.Encryption.Enabled && d.Encryption.UseLVM)
	rootSize := deployment.AllAvailableSize
	if swapPart {
		rootSize = deployment.RootCapSize
	}
	parts = append(parts, &deployment.Partition{
		Index:      next(),
		Label:      deployment.RootLabel,
		Role:       deployment.Root,
		FileSystem: deployment.Ext4,
		Size:       rootSize,
		MountPoint: deployment.RootMnt,
	})

	if swapPart {
		parts = append(parts, &deployment.Partition{
			Index:      next(),
			Label:      deployment.SwapLabel,
			Role:       deployment.Swap,
			FileSystem: deployment.SwapFS,
			Size:       d.Swap.Size,
		})
	}

	return parts
}

// Partitioner applies a partition plan to a physical disk.
type Partitioner struct {
	s *sys.System
}

func New(s *sys.System) *Partitioner {
	return &Partitioner{s: s}
}

// Apply wipes the disk and creates the planned partitions on a fresh GPT
// table. The kernel is asked to reread the table before returning, so the
// partition device nodes are usable by the caller.
func (p Partitioner) Apply(d *deployment.Deployment) error {
	device := d.Disk.Device
	p.s.Logger().Info("Wiping filesystem signatures on '%s'", device)
	if _, err := p.s.Runner().Run("wipefs", "-a", device); err != nil {
		return fmt.Errorf("wiping signatures on '%s': %w", device, err)
	}

	p.s.Logger().Info("Creating new GPT table on '%s'", device)
	_, err := p.s.Runner().Run("sgdisk", "-Z", device)
	if err != nil {
		return fmt.Errorf("wiping partition table on '%s': %w", device, err)
	}

	for _, part := range d.Partitions {
		size := "0"
		if part.Size != deployment.AllAvailableSize {
			size = fmt.Sprintf("+%dM", part.Size)
		}
		p.s.Logger().Info(
			"Creating partition %d (%s, %s)", part.Index,
			part.Role.String(), part.FileSystem.String(),
		)
		_, err = p.s.Runner().Run(
			"sgdisk", "-n", fmt.Sprintf("%d:0:%s", part.Index, size),
			"-t", fmt.Sprintf("%d:%s", part.Index, part.Role.TypeCode()),
			device,
		)
		if err != nil {
			return fmt.Errorf("creating partition %d on '%s': %w", part.Index, device, err)
		}
	}

	_, err = p.s.Runner().Run("partprobe", device)
	if err != nil {
		return fmt.Errorf("rereading partition table of '%s': %w", device, err)
	}
	p.s.Syscall().Sync()
	return nil
}

// ManualPartition drops the user into an interactive cfdisk session on the
// target disk. The resulting layout is the user's responsibility.
func (p Partitioner) ManualPartition(device string) error {
	p.s.Logger().Info("Starting cfdisk on '%s'", device)
	err := p.s.Runner().RunInteractive("cfdisk", device)
	if err != nil {
		return fmt.Errorf("running cfdisk on '%s': %w", device, err)
	}
	_, err = p.s.Runner().Run("partprobe", device)
	if err != nil {
		return fmt.Errorf("rereading partition table of '%s': %w", device, err)
	}
	p.s.Syscall().Sync()
	return nil
}
