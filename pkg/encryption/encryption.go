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

package encryption

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

const crypttabFile = "/etc/crypttab"

// Layout describes the block devices resulting from the encryption setup.
// RootDevice and SwapDevice are the nodes the mount assembler formats and
// mounts instead of the raw partition.
type Layout struct {
	// LuksDevice is the raw partition holding the LUKS container
	LuksDevice string
	// LuksUUID identifies the container for crypttab and the kernel
	// command line
	LuksUUID string
	// RootDevice is /dev/mapper/<name> or /dev/<vg>/root with LVM
	RootDevice string
	SwapDevice string
}

// Encryptor sets up a LUKS2 container on the root partition and optionally
// an LVM volume group inside it.
type Encryptor struct {
	s *sys.System
}

func New(s *sys.System) *Encryptor {
	return &Encryptor{s: s}
}

// Setup formats the given partition as LUKS2, opens it under the
// configured mapper name and, if requested, creates a volume group with a
// swap and a root logical volume inside. Failures here are fatal, an
// installation must never silently continue onto an unencrypted disk.
func (e Encryptor) Setup(d *deployment.Deployment, device, passphrase string) (*Layout, error) {
	cfg := d.Encryption
	e.s.Logger().Info("Formatting '%s' as LUKS2 container", device)
	_, err := e.s.Runner().RunInput(
		passphrase, "cryptsetup", "luksFormat", "--type", "luks2",
		"--batch-mode", device,
	)
	if err != nil {
		return nil, fmt.Errorf("formatting LUKS container on '%s': %w", device, err)
	}

	e.s.Logger().Info("Opening LUKS container as '%s'", cfg.MapperName)
	_, err = e.s.Runner().RunInput(
		passphrase, "cryptsetup", "open", device, cfg.MapperName,
	)
	if err != nil {
		return nil, fmt.Errorf("opening LUKS container on '%s': %w", device, err)
	}

	uuid, err := e.luksUUID(device)
	if err != nil {
		return nil, err
	}

	layout := &Layout{
		LuksDevice: device,
		LuksUUID:   uuid,
		RootDevice: filepath.Join("/dev/mapper", cfg.MapperName),
	}

	if cfg.UseLVM {
		if err = e.setupLVM(d, layout); err != nil {
			return nil, err
		}
	}
	return layout, nil
}

// setupLVM builds a volume group on top of the open mapping with an
// optional swap volume and a root volume taking the remaining space.
func (e Encryptor) setupLVM(d *deployment.Deployment, layout *Layout) error {
	cfg := d.Encryption
	mapper := layout.RootDevice

	e.s.Logger().Info("Creating volume group '%s' on '%s'", cfg.VolumeGroup, mapper)
	if _, err := e.s.Runner().Run("pvcreate", mapper); err != nil {
		return fmt.Errorf("creating physical volume on '%s': %w", mapper, err)
	}
	if _, err := e.s.Runner().Run("vgcreate", cfg.VolumeGroup, mapper); err != nil {
		return fmt.Errorf("creating volume group '%s': %w", cfg.VolumeGroup, err)
	}

	if d.Swap.Enabled {
		size := fmt.Sprintf("%dM", d.Swap.Size)
		if _, err := e.s.Runner().Run(
			"lvcreate", "--name", "swap", "-L", size, cfg.VolumeGroup,
		); err != nil {
			return fmt.Errorf("creating swap volume: %w", err)
		}
		layout.SwapDevice = filepath.Join("/dev", cfg.VolumeGroup, "swap")
	}

	if _, err := e.s.Runner().Run(
		"lvcreate", "--name", "root", "-l", "100%FREE", cfg.VolumeGroup,
	); err != nil {
		return fmt.Errorf("creating root volume: %w", err)
	}
	layout.RootDevice = filepath.Join("/dev", cfg.VolumeGroup, "root")
	return nil
}

func (e Encryptor) luksUUID(device string) (string, error) {
	out, err := e.s.Runner().Run("blkid", "-s", "UUID", "-o", "value", device)
	if err != nil {
		return "", fmt.Errorf("reading UUID of '%s': %w", device, err)
	}
	uuid := strings.TrimSpace(string(out))
	if uuid == "" {
		return "", fmt.Errorf("device '%s' has no UUID", device)
	}
	return uuid, nil
}

// WriteCrypttab records the mapping in the target root so the initramfs
// unlocks it at boot.
func (e Encryptor) WriteCrypttab(root string, d *deployment.Deployment, layout *Layout) error {
	path := filepath.Join(root, crypttabFile)
	if err := vfs.MkdirAll(e.s.FS(), filepath.Dir(path), vfs.DirPerm); err != nil {
		return fmt.Errorf("creating '%s' directory: %w", filepath.Dir(path), err)
	}
	line := fmt.Sprintf("%s UUID=%s none luks\n", d.Encryption.MapperName, layout.LuksUUID)
	if err := e.s.FS().WriteFile(path, []byte(line), vfs.FilePerm); err != nil {
		return fmt.Errorf("writing crypttab: %w", err)
	}
	return nil
}
