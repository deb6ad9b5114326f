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

package chroot_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	sysmock "github.com/Gautam9981/VoidInstall/pkg/sys/mock"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

func TestChrootSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chroot test suite")
}

var _ = Describe("Chroot", Label("chroot"), func() {
	var runner *sysmock.Runner
	var mounter *sysmock.Mounter
	var syscall *sysmock.Syscall
	var tfs vfs.FS
	var cleanup func()
	var s *sys.System
	var err error
	BeforeEach(func() {
		runner = sysmock.NewRunner()
		mounter = sysmock.NewMounter()
		syscall = &sysmock.Syscall{}
		tfs, cleanup, err = sysmock.TestFS(map[string]any{
			"/mnt/.keep": "",
		})
		Expect(err).ToNot(HaveOccurred())
		s, err = sys.NewSystem(
			sys.WithLogger(log.New(log.WithDiscardAll())),
			sys.WithRunner(runner),
			sys.WithMounter(mounter),
			sys.WithSyscall(syscall),
			sys.WithFS(tfs),
		)
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})
	It("binds the host pseudo filesystems and unwinds them in reverse", func() {
		c := chroot.NewChroot(s, "/mnt")
		Expect(c.Prepare()).To(Succeed())
		mounts, err := mounter.List()
		Expect(err).ToNot(HaveOccurred())
		Expect(len(mounts)).To(Equal(5))
		Expect(mounts[0].Path).To(Equal("/mnt/dev"))
		Expect(mounts[1].Path).To(Equal("/mnt/dev/pts"))
		Expect(mounts[2].Path).To(Equal("/mnt/proc"))
		Expect(mounts[3].Path).To(Equal("/mnt/sys"))
		Expect(mounts[4].Path).To(Equal("/mnt/run"))
		Expect(mounts[4].Type).To(Equal("tmpfs"))

		Expect(c.Close()).To(Succeed())
		Expect(mounter.Unmounts()).To(Equal([]string{
			"/mnt/run", "/mnt/sys", "/mnt/proc", "/mnt/dev/pts", "/mnt/dev",
		}))
		remaining, _ := mounter.List()
		Expect(remaining).To(BeEmpty())
	})
	It("refuses a second Prepare on a prepared chroot", func() {
		c := chroot.NewChroot(s, "/mnt")
		Expect(c.Prepare()).To(Succeed())
		Expect(c.Prepare()).To(MatchError(ContainSubstring("already prepared")))
	})
	It("keeps binding the remaining filesystems when one bind fails", func() {
		c := chroot.NewChroot(s, "/mnt")
		mounter.ErrorOnMountSource = "/proc"
		Expect(c.Prepare()).To(Succeed())
		mounts, err := mounter.List()
		Expect(err).ToNot(HaveOccurred())
		var paths []string
		for _, mnt := range mounts {
			paths = append(paths, mnt.Path)
		}
		Expect(paths).To(Equal([]string{
			"/mnt/dev", "/mnt/dev/pts", "/mnt/sys", "/mnt/run",
		}))
		Expect(c.Close()).To(Succeed())
		Expect(mounter.Unmounts()).To(Equal([]string{
			"/mnt/run", "/mnt/sys", "/mnt/dev/pts", "/mnt/dev",
		}))
	})
	It("tolerates every bind failing and leaves no mounts behind", func() {
		c := chroot.NewChroot(s, "/mnt")
		mounter.ErrorOnMount = true
		Expect(c.Prepare()).To(Succeed())
		remaining, _ := mounter.List()
		Expect(remaining).To(BeEmpty())
		Expect(c.Close()).To(Succeed())
	})
	It("runs commands through a shell inside the chroot", func() {
		c := chroot.NewChroot(s, "/mnt")
		_, err := c.Run("xbps-reconfigure -fa")
		Expect(err).ToNot(HaveOccurred())
		Expect(runner.CmdsMatch([][]string{
			{"chroot", "/mnt", "/bin/sh", "-c", "xbps-reconfigure -fa"},
		})).To(Succeed())
	})
	It("feeds stdin payloads through to the chrooted command", func() {
		c := chroot.NewChroot(s, "/mnt")
		_, err := c.RunInput("root:secret", "chpasswd")
		Expect(err).ToNot(HaveOccurred())
		Expect(runner.Inputs()[0]).To(Equal("root:secret"))
	})
	It("quotes shell values with embedded single quotes", func() {
		Expect(chroot.Quote("plain")).To(Equal("'plain'"))
		Expect(chroot.Quote("it's")).To(Equal(`'it'\''s'`))
	})
	It("switches root for callbacks and restores it afterwards", func() {
		executed := false
		err := chroot.ChrootedCallback(s, "/mnt", nil, func() error {
			executed = true
			return nil
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(executed).To(BeTrue())
		Expect(syscall.WasChrootedTo("/mnt")).To(BeTrue())
		remaining, _ := mounter.List()
		Expect(remaining).To(BeEmpty())
	})
	It("reports chroot failures from callbacks", func() {
		syscall.ErrorOnChroot = true
		c := chroot.NewChroot(s, "/mnt", chroot.WithoutDefaultBinds())
		err := c.RunCallback(func() error { return nil })
		Expect(err).To(MatchError(ContainSubstring("entering chroot")))
	})
})
