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

package bootloader_test

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Gautam9981/VoidInstall/pkg/bootloader"
	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/encryption"
	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	sysmock "github.com/Gautam9981/VoidInstall/pkg/sys/mock"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

func TestBootloaderSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bootloader test suite")
}

var _ = Describe("New", Label("bootloader"), func() {
	var s *sys.System
	BeforeEach(func() {
		var err error
		s, err = sys.NewSystem(sys.WithLogger(log.New(log.WithDiscardAll())), sys.WithRunner(sysmock.NewRunner()))
		Expect(err).ToNot(HaveOccurred())
	})
	It("builds the requested bootloader", func() {
		b, err := bootloader.New(bootloader.BootGrub, s)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(BeAssignableToTypeOf(&bootloader.Grub{}))
		b, err = bootloader.New(bootloader.BootNone, s)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.Install(nil, nil, nil)).To(Succeed())
	})
	It("rejects unknown bootloaders", func() {
		_, err := bootloader.New("refind", s)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Grub", Label("bootloader"), func() {
	var runner *sysmock.Runner
	var mounter *sysmock.Mounter
	var tfs vfs.FS
	var cleanup func()
	var s *sys.System
	var d *deployment.Deployment
	var ch *chroot.Chroot
	var err error

	shellCmds := func() []string {
		var cmds []string
		for _, cmd := range runner.Cmds() {
			if cmd[0] == "chroot" {
				cmds = append(cmds, cmd[len(cmd)-1])
			}
		}
		return cmds
	}

	BeforeEach(func() {
		runner = sysmock.NewRunner()
		mounter = sysmock.NewMounter()
		tfs, cleanup, err = sysmock.TestFS(map[string]any{
			"/mnt/etc/default/grub": "GRUB_CMDLINE_LINUX_DEFAULT=\"loglevel=4\"\n",
		})
		Expect(err).ToNot(HaveOccurred())
		s, err = sys.NewSystem(
			sys.WithLogger(log.New(log.WithDiscardAll())),
			sys.WithRunner(runner),
			sys.WithMounter(mounter),
			sys.WithFS(tfs),
		)
		Expect(err).ToNot(HaveOccurred())
		mounter.AddMount("/dev/sda1", "/mnt/boot/efi", "vfat")
		d = deployment.New(deployment.WithDisk(deployment.DiskTarget{
			Device:   "/dev/sda",
			Firmware: deployment.UEFI,
		}))
		ch = chroot.NewChroot(s, "/mnt")
	})
	AfterEach(func() {
		cleanup()
	})
	It("installs a named firmware entry and generates the configuration", func() {
		g := bootloader.NewGrub(s)
		Expect(g.Install(d, ch, nil)).To(Succeed())
		cmds := shellCmds()
		Expect(cmds[0]).To(HavePrefix("xbps-install -Sy grub-x86_64-efi efibootmgr"))
		Expect(cmds[1]).To(Equal("grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=void --recheck"))
		Expect(cmds[2]).To(Equal("grub-mkconfig -o /boot/grub/grub.cfg"))
	})
	It("falls back to the removable media path when the named entry fails", func() {
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			cmdline := args[len(args)-1]
			if strings.HasPrefix(cmdline, "grub-install") && !strings.Contains(cmdline, "--removable") {
				return nil, fmt.Errorf("efibootmgr: no NVRAM access")
			}
			return nil, nil
		}
		g := bootloader.NewGrub(s)
		Expect(g.Install(d, ch, nil)).To(Succeed())
		cmds := shellCmds()
		Expect(cmds).To(ContainElement(
			"grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=void --recheck --removable",
		))
		Expect(cmds[len(cmds)-1]).To(Equal("grub-mkconfig -o /boot/grub/grub.cfg"))
	})
	It("prefers the removable path on virtual machines", func() {
		d.Disk.VM = true
		g := bootloader.NewGrub(s)
		Expect(g.Install(d, ch, nil)).To(Succeed())
		cmds := shellCmds()
		Expect(cmds[1]).To(HaveSuffix("--removable"))
	})
	It("prefers the removable path when forced", func() {
		g := bootloader.NewGrub(s, bootloader.WithForceRemovable())
		Expect(g.Install(d, ch, nil)).To(Succeed())
		cmds := shellCmds()
		Expect(cmds[1]).To(HaveSuffix("--removable"))
	})
	It("tolerates a failing named entry after the removable install", func() {
		d.Disk.VM = true
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			cmdline := args[len(args)-1]
			if strings.HasPrefix(cmdline, "grub-install") && !strings.Contains(cmdline, "--removable") {
				return nil, fmt.Errorf("no NVRAM access")
			}
			return nil, nil
		}
		g := bootloader.NewGrub(s)
		Expect(g.Install(d, ch, nil)).To(Succeed())
	})
	It("stops hard when no EFI system partition is mounted", func() {
		mounter2 := sysmock.NewMounter()
		s2, err := sys.NewSystem(
			sys.WithLogger(log.New(log.WithDiscardAll())),
			sys.WithRunner(runner),
			sys.WithMounter(mounter2),
			sys.WithFS(tfs),
		)
		Expect(err).ToNot(HaveOccurred())
		g := bootloader.NewGrub(s2)
		err = g.Install(d, chroot.NewChroot(s2, "/mnt"), nil)
		Expect(err).To(MatchError(ContainSubstring("no EFI system partition")))
		Expect(shellCmds()).To(BeEmpty())
	})
	It("stops hard when the EFI system partition is not vfat", func() {
		mounter2 := sysmock.NewMounter()
		mounter2.AddMount("/dev/sda1", "/mnt/boot/efi", "ext4")
		s2, err := sys.NewSystem(
			sys.WithLogger(log.New(log.WithDiscardAll())),
			sys.WithRunner(runner),
			sys.WithMounter(mounter2),
			sys.WithFS(tfs),
		)
		Expect(err).ToNot(HaveOccurred())
		g := bootloader.NewGrub(s2)
		err = g.Install(d, chroot.NewChroot(s2, "/mnt"), nil)
		Expect(err).To(MatchError(ContainSubstring("expected vfat")))
		Expect(shellCmds()).To(BeEmpty())
	})
	It("installs to the MBR on BIOS targets without any removable fallback", func() {
		d.Disk.Firmware = deployment.BIOS
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			cmdline := args[len(args)-1]
			if strings.HasPrefix(cmdline, "grub-install") {
				return nil, fmt.Errorf("grub-install failed")
			}
			return nil, nil
		}
		g := bootloader.NewGrub(s)
		err := g.Install(d, ch, nil)
		Expect(err).To(MatchError(ContainSubstring("installing grub on '/dev/sda'")))
		for _, cmd := range shellCmds() {
			Expect(cmd).NotTo(ContainSubstring("--removable"))
		}
	})
	It("runs the BIOS install against the whole disk", func() {
		d.Disk.Firmware = deployment.BIOS
		g := bootloader.NewGrub(s)
		Expect(g.Install(d, ch, nil)).To(Succeed())
		Expect(shellCmds()).To(ContainElement("grub-install --target=i386-pc '/dev/sda'"))
	})
	Describe("encrypted root", func() {
		var layout *encryption.Layout
		BeforeEach(func() {
			d.Encryption.Enabled = true
			layout = &encryption.Layout{
				LuksDevice: "/dev/sda3",
				LuksUUID:   "22ab9aa1",
				RootDevice: "/dev/mapper/cryptroot",
			}
		})
		It("enables cryptodisk support and the unlock kernel arguments", func() {
			g := bootloader.NewGrub(s)
			Expect(g.Install(d, ch, layout)).To(Succeed())
			data, err := tfs.ReadFile("/mnt/etc/default/grub")
			Expect(err).ToNot(HaveOccurred())
			content := string(data)
			Expect(content).To(ContainSubstring("GRUB_ENABLE_CRYPTODISK="))
			Expect(content).To(ContainSubstring("rd.luks.name=22ab9aa1=cryptroot"))
			Expect(content).To(ContainSubstring("root=/dev/mapper/cryptroot"))
			Expect(content).To(ContainSubstring("loglevel=4"))
		})
		It("adds the volume group argument with LVM", func() {
			d.Encryption.UseLVM = true
			g := bootloader.NewGrub(s)
			Expect(g.Install(d, ch, layout)).To(Succeed())
			data, err := tfs.ReadFile("/mnt/etc/default/grub")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("rd.lvm.vg=vg0"))
		})
		It("fails when the layout is missing", func() {
			g := bootloader.NewGrub(s)
			err := g.Install(d, ch, nil)
			Expect(err).To(MatchError(ContainSubstring("no encryption layout")))
		})
	})
})
