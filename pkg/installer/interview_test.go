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

package installer_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/installer"
	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/prompt"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	sysmock "github.com/Gautam9981/VoidInstall/pkg/sys/mock"
	"github.com/Gautam9981/VoidInstall/pkg/sys/platform"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

var _ = Describe("Interview", Label("installer"), func() {
	var s *sys.System
	var runner *sysmock.Runner
	var tfs vfs.FS
	var cleanup func()
	var out *bytes.Buffer
	var passwords []string
	var err error

	const disksJSON = `{"blockdevices": [
		{"path": "/dev/sda", "size": 512110190592, "model": "QEMU HARDDISK", "type": "disk"},
		{"path": "/dev/sr0", "size": 1073741824, "type": "rom"}
	]}`

	newInstaller := func(input string) *installer.Installer {
		out = &bytes.Buffer{}
		p := prompt.New(
			prompt.WithInput(strings.NewReader(input)),
			prompt.WithOutput(out),
			prompt.WithPasswordReader(func(int) ([]byte, error) {
				entry := passwords[0]
				passwords = passwords[1:]
				return []byte(entry), nil
			}),
		)
		return installer.New(s, p)
	}
	BeforeEach(func() {
		runner = sysmock.NewRunner()
		runner.ReturnValue = []byte(disksJSON)
		tfs, cleanup, err = sysmock.TestFS(map[string]any{
			"/sys/firmware/efi/fw_platform_size": "64\n",
			"/proc/cpuinfo":                      "flags : fpu vme hypervisor\n",
		})
		Expect(err).ToNot(HaveOccurred())
		p, err := platform.New("linux", platform.ArchX86_64)
		Expect(err).ToNot(HaveOccurred())
		s, err = sys.NewSystem(
			sys.WithLogger(log.New(log.WithDiscardAll())),
			sys.WithRunner(runner),
			sys.WithFS(tfs),
			sys.WithPlatform(p),
		)
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})
	It("builds an encrypted LVM deployment from the answers", func() {
		passwords = []string{"luks", "luks", "rootpw", "rootpw", "bobpw", "bobpw"}
		i := newInstaller(strings.Join([]string{
			"1",    // disk
			"",     // partition automatically, default yes
			"y",    // encrypt
			"y",    // LVM
			"y",    // swap
			"lots", // invalid size, asked again
			"2G",
			"plasma", // unknown desktop, asked again
			"xfce",
			"", // hostname default
			"", // timezone default
			"", // locale default
			"y", // create user
			"bob",
		}, "\n") + "\n")

		d, cfg, err := i.Interview()
		Expect(err).ToNot(HaveOccurred())

		Expect(d.Disk.Device).To(Equal("/dev/sda"))
		Expect(d.Disk.Firmware).To(Equal(deployment.UEFI))
		Expect(d.Disk.VM).To(BeTrue())
		Expect(d.Encryption.Enabled).To(BeTrue())
		Expect(d.Encryption.UseLVM).To(BeTrue())
		Expect(d.Swap.Enabled).To(BeTrue())
		Expect(d.Swap.Size).To(Equal(deployment.MiB(2048)))
		Expect(d.Repositories).To(Equal([]string{xbps.MirrorBase}))

		// encrypted layouts carry an unencrypted /boot, swap lives in
		// the volume group
		roles := make([]deployment.PartRole, 0, len(d.Partitions))
		for _, p := range d.Partitions {
			roles = append(roles, p.Role)
		}
		Expect(roles).To(Equal([]deployment.PartRole{
			deployment.EFI, deployment.Boot, deployment.Root,
		}))

		Expect(cfg.Mode).To(Equal(installer.AutoPartition))
		Expect(cfg.Passphrase).To(Equal("luks"))
		Expect(cfg.Desktop).To(Equal(xbps.Xfce))
		Expect(cfg.Hostname).To(Equal("void"))
		Expect(cfg.Timezone).To(Equal("UTC"))
		Expect(cfg.Locale).To(Equal("en_US.UTF-8"))
		Expect(cfg.RootPassword).To(Equal("rootpw"))
		Expect(cfg.User).To(Equal(&installer.UserAccount{Name: "bob", Password: "bobpw"}))

		Expect(out.String()).To(ContainSubstring("unknown desktop environment: plasma"))
		Expect(out.String()).NotTo(ContainSubstring("/dev/sr0"))
	})
	It("plans a plain deployment without optional features", func() {
		passwords = []string{"rootpw", "rootpw"}
		i := newInstaller(strings.Join([]string{
			"1",
			"",     // automatic partitioning
			"",     // no encryption
			"",     // no swap
			"none", // desktop
			"myhost",
			"Europe/Berlin",
			"",
			"n", // no user account
		}, "\n") + "\n")

		d, cfg, err := i.Interview()
		Expect(err).ToNot(HaveOccurred())
		Expect(d.Encryption.Enabled).To(BeFalse())
		Expect(d.Swap.Enabled).To(BeFalse())
		Expect(d.Partitions).To(HaveLen(2))
		Expect(cfg.Hostname).To(Equal("myhost"))
		Expect(cfg.Timezone).To(Equal("Europe/Berlin"))
		Expect(cfg.User).To(BeNil())
	})
	It("switches to manual mode when automatic partitioning is declined", func() {
		passwords = []string{"rootpw", "rootpw"}
		i := newInstaller(strings.Join([]string{
			"1",
			"n", // manual partitioning
			"",  // no encryption
			"",  // no swap
			"none",
			"",
			"",
			"",
			"n",
		}, "\n") + "\n")

		d, cfg, err := i.Interview()
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Mode).To(Equal(installer.ManualPartition))
		Expect(d.Partitions).To(BeEmpty())
	})
})
