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

package xbps_test

import (
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	sysmock "github.com/Gautam9981/VoidInstall/pkg/sys/mock"
	"github.com/Gautam9981/VoidInstall/pkg/sys/platform"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

func TestXbpsSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "XBPS test suite")
}

var _ = Describe("RepoURL", Label("xbps"), func() {
	It("serves x86_64 from the repository root", func() {
		Expect(xbps.RepoURL(platform.ArchX86_64)).To(Equal(xbps.MirrorBase))
	})
	It("serves other architectures from a subdirectory", func() {
		Expect(xbps.RepoURL(platform.ArchAarch64)).To(Equal(xbps.MirrorBase + "/aarch64"))
	})
})

var _ = Describe("Desktop", Label("xbps"), func() {
	It("parses known desktops", func() {
		d, err := xbps.ParseDesktop("xfce")
		Expect(err).ToNot(HaveOccurred())
		Expect(d).To(Equal(xbps.Xfce))
		_, err = xbps.ParseDesktop("cde")
		Expect(err).To(HaveOccurred())
	})
	It("lists package sets per desktop", func() {
		Expect(xbps.NoDesktop.Packages()).To(BeEmpty())
		Expect(xbps.Xfce.Packages()).To(ContainElements("xfce4", "lightdm", "lightdm-gtk3-greeter"))
		Expect(xbps.Gnome.Packages()).To(ContainElements("gnome", "gdm"))
		Expect(xbps.KDE.Packages()).To(ContainElements("kde5", "sddm", "dolphin"))
	})
	It("knows the display manager service", func() {
		Expect(xbps.NoDesktop.DisplayManager()).To(BeEmpty())
		Expect(xbps.Xfce.DisplayManager()).To(Equal("lightdm"))
		Expect(xbps.Gnome.DisplayManager()).To(Equal("gdm"))
		Expect(xbps.KDE.DisplayManager()).To(Equal("sddm"))
	})
})

var _ = Describe("XBPS", Label("xbps"), func() {
	var s *sys.System
	var runner *sysmock.Runner
	var tfs vfs.FS
	var cleanup func()
	var x *xbps.XBPS
	var err error
	BeforeEach(func() {
		runner = sysmock.NewRunner()
		tfs, cleanup, err = sysmock.TestFS(nil)
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
		x = xbps.New(s)
	})
	AfterEach(func() {
		cleanup()
	})
	Describe("Install", func() {
		It("installs into the target root syncing the index", func() {
			Expect(x.Install("/mnt", "base-system", "cryptsetup")).To(Succeed())
			Expect(runner.CmdsMatch([][]string{{
				"xbps-install", "-Sy", "-R", xbps.MirrorBase, "-r", "/mnt",
				"base-system", "cryptsetup",
			}})).To(Succeed())
		})
		It("is a no-op without packages", func() {
			Expect(x.Install("/mnt")).To(Succeed())
			Expect(runner.CmdsMatch([][]string{})).To(Succeed())
		})
		It("fails when xbps-install fails", func() {
			runner.ReturnError = fmt.Errorf("repository unreachable")
			Expect(x.Install("/mnt", "base-system")).NotTo(Succeed())
		})
	})
	Describe("Reconfigure", func() {
		It("runs the reconfigure command through the callback", func() {
			var got string
			err := x.Reconfigure(func(command string) ([]byte, error) {
				got = command
				return nil, nil
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal("xbps-reconfigure -fa"))
		})
	})
	Describe("WriteRepoConfs", func() {
		It("writes main, nonfree and multilib repository files", func() {
			Expect(x.WriteRepoConfs("/mnt")).To(Succeed())
			data, err := tfs.ReadFile("/mnt/etc/xbps.d/00-repository-main.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("repository=" + xbps.MirrorBase + "\n"))
			data, err = tfs.ReadFile("/mnt/etc/xbps.d/10-repository-nonfree.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("/nonfree"))
			data, err = tfs.ReadFile("/mnt/etc/xbps.d/20-repository-multilib.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("/multilib/nonfree"))
		})
		It("skips multilib on non x86_64 architectures", func() {
			p, err := platform.New("linux", platform.ArchAarch64)
			Expect(err).ToNot(HaveOccurred())
			s, err = sys.NewSystem(
				sys.WithLogger(log.New(log.WithDiscardAll())),
				sys.WithRunner(runner),
				sys.WithFS(tfs),
				sys.WithPlatform(p),
			)
			Expect(err).ToNot(HaveOccurred())
			x = xbps.New(s)
			Expect(x.WriteRepoConfs("/mnt")).To(Succeed())
			data, err := tfs.ReadFile("/mnt/etc/xbps.d/00-repository-main.conf")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("repository=" + xbps.MirrorBase + "/aarch64\n"))
			ok, _ := vfs.Exists(tfs, "/mnt/etc/xbps.d/20-repository-multilib.conf")
			Expect(ok).To(BeFalse())
		})
	})
})
