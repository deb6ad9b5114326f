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
	"github.com/Gautam9981/VoidInstall/pkg/partitioner"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

// Interview walks the user through every installation decision and
// returns the resulting deployment and configuration. Nothing touches the
// disk here, Run does that after its own confirmation.
func (i *Installer) Interview() (*deployment.Deployment, *Config, error) {
	firmware := hardware.DetectFirmware(i.s)
	vm := hardware.IsVM(i.s)
	i.s.Logger().Info("Detected %s firmware on %s hardware (virtual machine: %t)",
		firmware.String(), i.s.Platform().Arch, vm)

	disks, err := lsblk.NewLsDevice(i.s).GetDisks()
	if err != nil {
		return nil, nil, fmt.Errorf("listing disks: %w", err)
	}
	disk, err := i.p.SelectDisk(disks)
	if err != nil {
		return nil, nil, err
	}

	cfg := &Config{Mode: AutoPartition}
	auto, err := i.p.AskYesNo("Partition the disk automatically", true)
	if err != nil {
		return nil, nil, err
	}
	if !auto {
		cfg.Mode = ManualPartition
	}

	opts := []deployment.Opt{deployment.WithDisk(deployment.DiskTarget{
		Device:   disk.Path,
		Firmware: firmware,
		VM:       vm,
	})}

	encrypt, err := i.p.AskYesNo("Encrypt the root filesystem", false)
	if err != nil {
		return nil, nil, err
	}
	if encrypt {
		useLVM, err := i.p.AskYesNo("Use LVM inside the encrypted container", false)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, deployment.WithEncryption(useLVM))
		cfg.Passphrase, err = i.p.AskPassphrase("Encryption passphrase")
		if err != nil {
			return nil, nil, err
		}
	}

	swap, err := i.p.AskYesNo("Create a swap area", false)
	if err != nil {
		return nil, nil, err
	}
	if swap {
		for {
			answer, err := i.p.Ask("Swap size (e.g. 4G, 512M)", "4G")
			if err != nil {
				return nil, nil, err
			}
			size, err := partitioner.ParseSwapSize(answer)
			if err == nil {
				opts = append(opts, deployment.WithSwap(size))
				break
			}
			fmt.Fprintln(i.p.Output(), err.Error())
		}
	}

	d := deployment.New(opts...)
	if cfg.Mode == AutoPartition {
		d.Partitions = partitioner.Plan(d)
	}
	d.Repositories = []string{xbps.RepoURL(i.s.Platform().Arch)}

	if err = i.interviewSystem(cfg); err != nil {
		return nil, nil, err
	}
	return d, cfg, nil
}

func (i *Installer) interviewSystem(cfg *Config) error {
	var err error
	for {
		answer, err := i.p.Ask("Desktop environment (none/xfce/gnome/kde)", "none")
		if err != nil {
			return err
		}
		desktop, err := xbps.ParseDesktop(answer)
		if err == nil {
			cfg.Desktop = desktop
			break
		}
		fmt.Fprintln(i.p.Output(), err.Error())
	}

	if cfg.Hostname, err = i.p.Ask("Hostname", "void"); err != nil {
		return err
	}
	if cfg.Timezone, err = i.p.Ask("Timezone", "UTC"); err != nil {
		return err
	}
	if cfg.Locale, err = i.p.Ask("Locale", "en_US.UTF-8"); err != nil {
		return err
	}
	if cfg.RootPassword, err = i.p.AskPassphrase("Root password"); err != nil {
		return err
	}

	createUser, err := i.p.AskYesNo("Create a user account", true)
	if err != nil {
		return err
	}
	if createUser {
		name, err := i.p.Ask("Username", "")
		if err != nil {
			return err
		}
		password, err := i.p.AskPassphrase("Password for " + name)
		if err != nil {
			return err
		}
		cfg.User = &UserAccount{Name: name, Password: password}
	}
	return nil
}
