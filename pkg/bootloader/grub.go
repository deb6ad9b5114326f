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

package bootloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/encryption"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/platform"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

const (
	bootloaderID    = "void"
	grubDefaultFile = "/etc/default/grub"
	grubCfgPath     = "/boot/grub/grub.cfg"

	cmdlineDefaultKey = "GRUB_CMDLINE_LINUX_DEFAULT"
	cryptodiskKey     = "GRUB_ENABLE_CRYPTODISK"
)

// Grub installs the GRUB bootloader into a prepared chroot.
type Grub struct {
	s *sys.System
	// forceRemovable prefers the removable media path over a named
	// firmware boot entry, the default on virtual machines whose NVRAM
	// entries rarely survive
	forceRemovable bool
}

type GrubOpt func(g *Grub)

func WithForceRemovable() GrubOpt {
	return func(g *Grub) {
		g.forceRemovable = true
	}
}

func NewGrub(s *sys.System, opts ...GrubOpt) *Grub {
	g := &Grub{s: s}
	for _, o := range opts {
		o(g)
	}
	return g
}

// efiTarget maps the platform architecture to the grub target triple and
// the Void package providing it.
func efiTarget(arch string) (target, pkg string, err error) {
	switch arch {
	case platform.ArchX86_64:
		return "x86_64-efi", "grub-x86_64-efi", nil
	case platform.ArchAarch64:
		return "arm64-efi", "grub-arm64-efi", nil
	case platform.ArchArmv7l:
		return "arm-efi", "grub-arm-efi", nil
	default:
		return "", "", fmt.Errorf("no EFI grub target for architecture '%s'", arch)
	}
}

// Install makes the target system bootable for its firmware mode and
// generates the grub configuration. Bootloader failures are fatal, a
// system that cannot boot is not an installation.
func (g *Grub) Install(d *deployment.Deployment, ch *chroot.Chroot, layout *encryption.Layout) error {
	if d.Encryption.Enabled {
		if layout == nil {
			return fmt.Errorf("encryption enabled but no encryption layout given")
		}
		if err := g.configureCryptodisk(ch.Path(), d, layout); err != nil {
			return err
		}
	}

	var err error
	switch d.Disk.Firmware {
	case deployment.UEFI:
		err = g.installEfi(d, ch)
	case deployment.BIOS:
		err = g.installBios(d, ch)
	default:
		err = fmt.Errorf("unknown firmware mode: %s", d.Disk.Firmware.String())
	}
	if err != nil {
		return err
	}

	g.s.Logger().Info("Generating grub configuration")
	if _, err = ch.Run("grub-mkconfig -o " + grubCfgPath); err != nil {
		return fmt.Errorf("generating grub configuration: %w", err)
	}
	return nil
}

// installEfi installs grub on a UEFI target. The forceRemovable flag and
// virtual machines flip the order: removable media path first, named NVRAM
// entry as a best effort extra. Physical machines try the named entry
// first and fall back to the removable path when the firmware refuses to
// register it.
func (g *Grub) installEfi(d *deployment.Deployment, ch *chroot.Chroot) error {
	if err := g.checkESP(ch.Path()); err != nil {
		return err
	}

	target, pkg, err := efiTarget(g.s.Platform().Arch)
	if err != nil {
		return err
	}
	if err = xbps.New(g.s).InstallChrooted(ch.Run, pkg, "efibootmgr"); err != nil {
		return fmt.Errorf("installing grub packages: %w", err)
	}

	base := fmt.Sprintf(
		"grub-install --target=%s --efi-directory=%s --bootloader-id=%s --recheck",
		target, deployment.EfiMnt, bootloaderID,
	)
	removable := base + " --removable"

	if g.forceRemovable || d.Disk.VM || d.BootConfig.ForceRemovable {
		g.s.Logger().Info("Installing grub to the removable media path")
		if _, err = ch.Run(removable); err != nil {
			return fmt.Errorf("installing grub (removable): %w", err)
		}
		if _, err = ch.Run(base); err != nil {
			g.s.Logger().Warn("Could not register firmware boot entry: %s", err.Error())
		}
		return nil
	}

	g.s.Logger().Info("Installing grub with firmware boot entry '%s'", bootloaderID)
	if _, err = ch.Run(base); err != nil {
		g.s.Logger().Warn("Firmware boot entry installation failed, retrying with the removable media path")
		if _, err = ch.Run(removable); err != nil {
			return fmt.Errorf("installing grub (removable fallback): %w", err)
		}
	}
	return nil
}

func (g *Grub) installBios(d *deployment.Deployment, ch *chroot.Chroot) error {
	if err := xbps.New(g.s).InstallChrooted(ch.Run, "grub"); err != nil {
		return fmt.Errorf("installing grub packages: %w", err)
	}
	g.s.Logger().Info("Installing grub to the MBR of '%s'", d.Disk.Device)
	cmd := "grub-install --target=i386-pc " + chroot.Quote(d.Disk.Device)
	if _, err := ch.Run(cmd); err != nil {
		return fmt.Errorf("installing grub on '%s': %w", d.Disk.Device, err)
	}
	return nil
}

// checkESP verifies the EFI system partition is mounted at its expected
// location and carries a vfat filesystem before grub-install writes
// anywhere near it.
func (g *Grub) checkESP(root string) error {
	esp := filepath.Join(root, deployment.EfiMnt)
	mnts, err := g.s.Mounter().List()
	if err != nil {
		return fmt.Errorf("checking EFI system partition at '%s': %w", esp, err)
	}
	for _, mnt := range mnts {
		if mnt.Path != esp {
			continue
		}
		if mnt.Type != deployment.VFat.String() {
			return fmt.Errorf(
				"EFI system partition at '%s' has filesystem '%s', expected vfat",
				esp, mnt.Type,
			)
		}
		return nil
	}
	return fmt.Errorf("no EFI system partition mounted at '%s'", esp)
}

// configureCryptodisk adjusts /etc/default/grub so the initramfs can
// unlock the root volume at boot.
func (g *Grub) configureCryptodisk(root string, d *deployment.Deployment, layout *encryption.Layout) error {
	path := filepath.Join(root, grubDefaultFile)

	vars := map[string]string{}
	if ok, _ := vfs.Exists(g.s.FS(), path); ok {
		var err error
		vars, err = vfs.LoadEnvFile(g.s.FS(), path)
		if err != nil {
			return fmt.Errorf("parsing '%s': %w", path, err)
		}
	}

	vars[cryptodiskKey] = "y"

	cmdline := vars[cmdlineDefaultKey]
	extra := []string{
		fmt.Sprintf("rd.luks.name=%s=%s", layout.LuksUUID, d.Encryption.MapperName),
	}
	if d.Encryption.UseLVM {
		extra = append(extra, "rd.lvm.vg="+d.Encryption.VolumeGroup)
	}
	if layout.RootDevice != "" {
		extra = append(extra, "root="+layout.RootDevice)
	}
	for _, arg := range extra {
		if !strings.Contains(cmdline, arg) {
			cmdline = strings.TrimSpace(cmdline + " " + arg)
		}
	}
	vars[cmdlineDefaultKey] = cmdline

	content, err := godotenv.Marshal(vars)
	if err != nil {
		return fmt.Errorf("serializing grub defaults: %w", err)
	}
	if err = vfs.MkdirAll(g.s.FS(), filepath.Dir(path), vfs.DirPerm); err != nil {
		return fmt.Errorf("creating '%s': %w", filepath.Dir(path), err)
	}
	if err = g.s.FS().WriteFile(path, []byte(content+"\n"), vfs.FilePerm); err != nil {
		return fmt.Errorf("writing '%s': %w", path, err)
	}
	return nil
}
