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

package installer

import (
	"fmt"

	"github.com/Gautam9981/VoidInstall/pkg/block/lsblk"
	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/hardware"
	"github.com/Gautam9981/VoidInstall/pkg/mount"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

// selectManualLayout asks the user to map the partitions created with
// cfdisk to their roles and returns the resulting mount steps. The listed
// partitions come from a fresh scan of the target disk.
func (i *Installer) selectManualLayout(d *deployment.Deployment) ([]mount.Step, string, error) {
	parts, err := lsblk.NewLsDevice(i.s).GetDevicePartitions(d.Disk.Device)
	if err != nil {
		return nil, "", fmt.Errorf("scanning partitions of '%s': %w", d.Disk.Device, err)
	}
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("no partitions found on '%s'", d.Disk.Device)
	}

	fmt.Fprintln(i.p.Output(), "\nDetected partitions:")
	for _, p := range parts {
		fs := p.FileSystem
		if fs == "" {
			fs = "no filesystem"
		}
		fmt.Fprintf(i.p.Output(), "  %-16s %6d MiB  %s\n", p.Path, p.Size, fs)
	}

	askPart := func(question string, optional bool) (string, error) {
		for {
			answer, err := i.p.Ask(question, "")
			if err != nil {
				return "", err
			}
			if answer == "" && optional {
				return "", nil
			}
			if ok, _ := vfs.Exists(i.s.FS(), answer); ok {
				return answer, nil
			}
			fmt.Fprintf(i.p.Output(), "Device '%s' not found.\n", answer)
		}
	}

	rootDevice, err := askPart("Partition to use for / (root)", false)
	if err != nil {
		return nil, "", err
	}

	var steps []mount.Step
	if !d.Encryption.Enabled {
		steps = append(steps, mount.Step{
			Device:     rootDevice,
			MountPoint: deployment.RootMnt,
			FileSystem: deployment.Ext4,
			Label:      deployment.RootLabel,
		})
	}

	if d.Disk.Firmware == deployment.UEFI {
		device, err := askPart("Partition to use for the EFI system partition", false)
		if err != nil {
			return nil, "", err
		}
		steps = append(steps, mount.Step{
			Device:     device,
			MountPoint: deployment.EfiMnt,
			FileSystem: deployment.VFat,
			Label:      deployment.EfiLabel,
		})
	}

	if d.Encryption.Enabled {
		device, err := askPart("Partition to use for /boot (unencrypted)", false)
		if err != nil {
			return nil, "", err
		}
		steps = append(steps, mount.Step{
			Device:     device,
			MountPoint: deployment.BootMnt,
			FileSystem: deployment.Ext4,
			Label:      deployment.BootLabel,
		})
	}

	lvmSwap := d.Swap.Enabled && d.Encryption.Enabled && d.Encryption.UseLVM
	if d.Swap.Enabled && !lvmSwap {
		device, err := askPart("Partition to use for swap (empty to skip)", true)
		if err != nil {
			return nil, "", err
		}
		if device != "" {
			steps = append(steps, mount.Step{
				Device:     device,
				FileSystem: deployment.SwapFS,
				Label:      deployment.SwapLabel,
			})
		} else {
			d.Swap.Enabled = false
		}
	}

	return steps, rootDevice, nil
}

func (i *Installer) graphicsPackages() []string {
	return hardware.GraphicsPackages(i.s)
}
