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
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/Gautam9981/VoidInstall/pkg/blockreset"
	"github.com/Gautam9981/VoidInstall/pkg/bootloader"
	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/cleanstack"
	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/encryption"
	"github.com/Gautam9981/VoidInstall/pkg/mount"
	"github.com/Gautam9981/VoidInstall/pkg/partitioner"
	"github.com/Gautam9981/VoidInstall/pkg/prompt"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

var (
	// ErrNotRoot is returned when the installer runs without root
	// privileges.
	ErrNotRoot = errors.New("this program must be run as root")
	// ErrAborted is returned when the user declines the erase
	// confirmation.
	ErrAborted = errors.New("installation aborted by user")
)

const defaultWorkRoot = "/mnt"

// PartitionMode selects between the computed partition plan and an
// interactive cfdisk session.
type PartitionMode int

const (
	AutoPartition PartitionMode = iota + 1
	ManualPartition
)

// UserAccount is the unprivileged user created on the installed system.
type UserAccount struct {
	Name     string
	Password string
}

// Config carries the interactive answers that are not part of the disk
// deployment.
type Config struct {
	Mode         PartitionMode
	Hostname     string
	Timezone     string
	Locale       string
	RootPassword string
	User         *UserAccount
	Desktop      xbps.Desktop
	// Passphrase unlocks the LUKS container, empty without encryption
	Passphrase string
}

// Installer drives a full installation from a blank or recycled disk to a
// bootable system.
type Installer struct {
	s        *sys.System
	p        *prompt.Prompter
	workRoot string
	bootName string
	forceRem bool
}

type Opts func(i *Installer)

func WithWorkRoot(root string) Opts {
	return func(i *Installer) {
		i.workRoot = root
	}
}

func WithBootloader(name string) Opts {
	return func(i *Installer) {
		i.bootName = name
	}
}

func WithForceRemovable() Opts {
	return func(i *Installer) {
		i.forceRem = true
	}
}

func New(s *sys.System, p *prompt.Prompter, opts ...Opts) *Installer {
	inst := &Installer{
		s:        s,
		p:        p,
		workRoot: defaultWorkRoot,
		bootName: bootloader.BootGrub,
	}
	for _, o := range opts {
		o(inst)
	}
	return inst
}

// Run executes the installation. The deployment and config are expected
// to be complete, typically coming from Interview. All block level state
// created along the way is torn down on failure, and the work tree is
// unmounted on the way out in any case.
func (i *Installer) Run(d *deployment.Deployment, cfg *Config) (err error) {
	if i.s.Syscall().Geteuid() != 0 {
		return ErrNotRoot
	}

	if cfg.Mode == AutoPartition {
		if err = d.Sanitize(i.s); err != nil {
			return fmt.Errorf("inconsistent deployment: %w", err)
		}
	} else if err = deployment.CheckDiskDevice(i.s, d); err != nil {
		return err
	}

	ok, err := i.p.ConfirmErase(d.Disk.Device)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}

	i.preflightTools(d, cfg)

	cleanup := cleanstack.NewCleanStack()
	defer func() { err = cleanup.Cleanup(err) }()

	if err = blockreset.New(i.s, blockreset.WithWorkRoot(i.workRoot)).Reset(d.Disk.Device); err != nil {
		return err
	}

	steps, rootDevice, err := i.prepareDisk(d, cfg)
	if err != nil {
		return err
	}

	var layout *encryption.Layout
	if d.Encryption.Enabled {
		steps, layout, err = i.setupEncryption(d, cfg, steps, rootDevice, cleanup)
		if err != nil {
			return err
		}
	}

	assembler := i.newAssembler(cfg)
	cleanup.Push(func() error {
		return blockreset.New(i.s, blockreset.WithWorkRoot(i.workRoot)).Reset(d.Disk.Device)
	})
	if err = assembler.Assemble(steps); err != nil {
		return err
	}

	if err = i.installPackages(d, cfg); err != nil {
		return err
	}

	ch := chroot.NewChroot(i.s, i.workRoot)
	if err = ch.Prepare(); err != nil {
		return err
	}
	cleanup.Push(ch.Close)

	if err = i.configureSystem(ch, cfg); err != nil {
		return err
	}

	if err = assembler.WriteFstab(steps); err != nil {
		return err
	}
	if layout != nil {
		if err = encryption.New(i.s).WriteCrypttab(i.workRoot, d, layout); err != nil {
			return err
		}
	}
	if err = d.WriteDeploymentFile(i.s, i.workRoot); err != nil {
		return err
	}

	boot, err := bootloader.New(i.bootName, i.s)
	if err != nil {
		return err
	}
	if _, isGrub := boot.(*bootloader.Grub); isGrub && i.forceRem {
		boot = bootloader.NewGrub(i.s, bootloader.WithForceRemovable())
	}
	if err = boot.Install(d, ch, layout); err != nil {
		return err
	}

	i.s.Logger().Info("Installation complete, the system can be rebooted")
	return nil
}

// preflightTools checks the host tools the installation will invoke and
// tries to install any missing ones onto the live system. Best effort,
// the actual failure surfaces at the call site if a tool stays missing.
func (i *Installer) preflightTools(d *deployment.Deployment, cfg *Config) {
	tools := []string{"wipefs", "sgdisk", "partprobe", "blkid", "lsblk",
		"mkfs.ext4", "mkfs.vfat", "xbps-install"}
	if cfg.Mode == ManualPartition {
		tools = append(tools, "cfdisk")
	}
	if d.Swap.Enabled {
		tools = append(tools, "mkswap")
	}
	if d.Encryption.Enabled {
		tools = append(tools, "cryptsetup")
		if d.Encryption.UseLVM {
			tools = append(tools, "vgcreate")
		}
	}

	toolPackages := map[string]string{
		"sgdisk":    "gptfdisk",
		"mkfs.ext4": "e2fsprogs",
		"mkfs.vfat": "dosfstools",
		"mkswap":    "util-linux",
		"cfdisk":    "util-linux",
		"vgcreate":  "lvm2",
	}

	var missing []string
	for _, tool := range tools {
		if _, err := i.s.Runner().Run("sh", "-c", "command -v "+tool); err != nil {
			pkg := toolPackages[tool]
			if pkg == "" {
				pkg = tool
			}
			if !slices.Contains(missing, pkg) {
				missing = append(missing, pkg)
			}
		}
	}
	if len(missing) == 0 {
		return
	}

	i.s.Logger().Info("Installing missing host tools: %v", missing)
	args := append([]string{"-Sy"}, missing...)
	if _, err := i.s.Runner().Run("xbps-install", args...); err != nil {
		i.s.Logger().Warn("Could not install host tools %v: %s", missing, err.Error())
	}
}

// prepareDisk partitions the target disk and returns the formatting and
// mounting steps plus the device node holding the root filesystem or the
// LUKS container.
func (i *Installer) prepareDisk(d *deployment.Deployment, cfg *Config) ([]mount.Step, string, error) {
	part := partitioner.New(i.s)
	if cfg.Mode == ManualPartition {
		if err := part.ManualPartition(d.Disk.Device); err != nil {
			return nil, "", err
		}
		return i.selectManualLayout(d)
	}

	if err := part.Apply(d); err != nil {
		return nil, "", err
	}

	var steps []mount.Step
	var rootDevice string
	for _, p := range d.Partitions {
		device := partitioner.PartitionPath(d.Disk.Device, p.Index)
		if p.Role == deployment.Root {
			rootDevice = device
			if d.Encryption.Enabled {
				// the encryption layer formats and replaces this device
				continue
			}
		}
		steps = append(steps, mount.Step{
			Device:     device,
			MountPoint: p.MountPoint,
			FileSystem: p.FileSystem,
			Label:      p.Label,
		})
	}
	return steps, rootDevice, nil
}

// setupEncryption wraps the root device into a LUKS container and appends
// the resulting mapper devices to the mount steps.
func (i *Installer) setupEncryption(
	d *deployment.Deployment, cfg *Config, steps []mount.Step,
	rootDevice string, cleanup *cleanstack.CleanStack,
) ([]mount.Step, *encryption.Layout, error) {
	if cfg.Passphrase == "" {
		return nil, nil, fmt.Errorf("encryption enabled but no passphrase given")
	}
	layout, err := encryption.New(i.s).Setup(d, rootDevice, cfg.Passphrase)
	if err != nil {
		return nil, nil, err
	}
	cleanup.PushErrorOnly(func() error {
		if d.Encryption.UseLVM {
			_, _ = i.s.Runner().Run("vgchange", "-an", d.Encryption.VolumeGroup)
		}
		_, cErr := i.s.Runner().Run("cryptsetup", "close", d.Encryption.MapperName)
		return cErr
	})

	steps = append(steps, mount.Step{
		Device:     layout.RootDevice,
		MountPoint: deployment.RootMnt,
		FileSystem: deployment.Ext4,
		Label:      deployment.RootLabel,
	})
	if layout.SwapDevice != "" {
		steps = append(steps, mount.Step{
			Device:     layout.SwapDevice,
			FileSystem: deployment.SwapFS,
			Label:      deployment.SwapLabel,
		})
	}
	return steps, layout, nil
}

func (i *Installer) newAssembler(cfg *Config) *mount.Assembler {
	opts := []mount.Opts{mount.WithWorkRoot(i.workRoot)}
	if cfg.Mode == ManualPartition {
		opts = append(opts, mount.WithReformatConfirm(func(device, fs string) (bool, error) {
			question := fmt.Sprintf("Device %s holds a %s filesystem, format anyway?", device, fs)
			return i.p.AskYesNo(question, false)
		}))
	}
	return mount.New(i.s, opts...)
}

// installPackages installs the base system, the desktop environment and
// the hardware driver packages into the work tree.
func (i *Installer) installPackages(d *deployment.Deployment, cfg *Config) error {
	x := xbps.New(i.s)
	if err := x.WriteRepoConfs(i.workRoot); err != nil {
		return err
	}

	packages := append([]string{}, xbps.BasePackages...)
	packages = append(packages, xbps.SoundPackages...)
	if d.Encryption.Enabled {
		packages = append(packages, "cryptsetup")
		if d.Encryption.UseLVM {
			packages = append(packages, "lvm2")
		}
	}
	packages = append(packages, cfg.Desktop.Packages()...)
	if !d.Disk.VM {
		packages = append(packages, i.graphicsPackages()...)
	}
	if err := x.Install(i.workRoot, packages...); err != nil {
		return err
	}

	// the live network configuration keeps name resolution working
	// inside the chroot
	resolv := filepath.Join(i.workRoot, "/etc/resolv.conf")
	if ok, _ := vfs.Exists(i.s.FS(), "/etc/resolv.conf"); ok {
		if err := vfs.CopyFile(i.s.FS(), "/etc/resolv.conf", resolv); err != nil {
			i.s.Logger().Warn("Could not copy resolv.conf: %s", err.Error())
		}
	}
	return nil
}
