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

package lsblk_test

import (
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Gautam9981/VoidInstall/pkg/block"
	"github.com/Gautam9981/VoidInstall/pkg/block/lsblk"
	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
	sysmock "github.com/Gautam9981/VoidInstall/pkg/sys/mock"
)

const fullLsblkTmpl = `{
   "blockdevices": [
      {
         "label": "EFI",
         "uuid": "236dacf0",
         "size": 536870912,
         "fstype": "vfat",
         "mountpoints": [
             "/boot/efi"
         ],
         "path": "/dev/sda1",
         "pkname": "/dev/sda",
         "type": "part"
      }%s
   ]
}
`

const partsPortionLsblkOut = `,{
         "label": "VOID",
         "uuid": "34a8abb8-ddb3-48a2-8ecc-2443e92c7510",
         "size": 351333777408,
         "fstype": "ext4",
         "mountpoints": [
             "/"
         ],
         "path": "/dev/sda2",
         "pkname": "/dev/sda",
         "type": "part"
      },{
         "label": "",
         "size": 670454251520,
         "fstype": "ext4",
         "mountpoints": [],
         "path": "/dev/mapper/cryptroot",
         "type": "crypt"
      }`

const disksLsblkOut = `{
   "blockdevices": [
      {
         "name": "/dev/sda",
         "path": "/dev/sda",
         "size": 512110190592,
         "model": "Samsung SSD 870",
         "type": "disk"
      },
      {
         "name": "/dev/sr0",
         "path": "/dev/sr0",
         "size": 1073741312,
         "model": "QEMU DVD-ROM",
         "type": "rom"
      },
      {
         "name": "/dev/nvme0n1",
         "path": "/dev/nvme0n1",
         "size": 1024209543168,
         "type": "disk"
      }
   ]
}
`

func TestLsBlockSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LsBlock test suite")
}

var _ = Describe("BlockDevice", Label("lsblk"), func() {
	var runner *sysmock.Runner
	var b block.Device
	var json string
	var lsblkErr error
	var err error
	BeforeEach(func() {
		runner = sysmock.NewRunner()

		var s *sys.System
		s, err = sys.NewSystem(sys.WithLogger(log.New(log.WithDiscardAll())), sys.WithRunner(runner))
		Expect(err).ToNot(HaveOccurred())
		runner.SideEffect = func(command string, args ...string) ([]byte, error) {
			if command == "lsblk" {
				if lsblkErr != nil {
					return []byte{}, lsblkErr
				}
				return []byte(json), nil
			}
			return []byte{}, nil
		}
		lsblkErr = nil
		b = lsblk.NewLsDevice(s)
	})
	Describe("GetPartitionFS", func() {
		BeforeEach(func() {
			json = fmt.Sprintf(fullLsblkTmpl, "")
		})
		It("returns the filesystem for the given partition", func() {
			fst, err := b.GetPartitionFS("/dev/sda1")
			Expect(err).NotTo(HaveOccurred())
			Expect(fst).To(Equal("vfat"))
		})
		It("lsblk call fails", func() {
			lsblkErr = fmt.Errorf("new lsblk error")
			_, err := b.GetPartitionFS("/dev/sda1")
			Expect(err).To(HaveOccurred())
		})
		It("fails when multiple partitions are listed", func() {
			json = fmt.Sprintf(fullLsblkTmpl, partsPortionLsblkOut)
			_, err := b.GetPartitionFS("/dev/sda")
			Expect(err).To(HaveOccurred())
		})
	})
	Describe("GetDevicePartitions", func() {
		BeforeEach(func() {
			json = fmt.Sprintf(fullLsblkTmpl, partsPortionLsblkOut)
		})
		It("lists all partitions found by lsblk, crypt mappings included", func() {
			pl, err := b.GetDevicePartitions("/dev/sda")
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pl)).To(Equal(3))
			part := pl.GetPartitionByPath("/dev/sda2")
			Expect(part).NotTo(BeNil())
			Expect(part.Label).To(Equal("VOID"))
			Expect(part.MountPoints).To(Equal([]string{"/"}))
			part = pl.GetPartitionByPath("/dev/mapper/cryptroot")
			Expect(part).NotTo(BeNil())
			Expect(part.FileSystem).To(Equal("ext4"))
			Expect(part.MountPoints).To(BeEmpty())
		})
		It("converts sizes to MiB", func() {
			pl, err := b.GetDevicePartitions("/dev/sda")
			Expect(err).NotTo(HaveOccurred())
			part := pl.GetPartitionByPath("/dev/sda1")
			Expect(part.Size).To(Equal(uint(512)))
		})
		It("lsblk call fails", func() {
			lsblkErr = fmt.Errorf("new lsblk error")
			_, err := b.GetDevicePartitions("/dev/sda")
			Expect(err).To(HaveOccurred())
		})
	})
	Describe("GetAllPartitions", func() {
		BeforeEach(func() {
			json = fmt.Sprintf(fullLsblkTmpl, partsPortionLsblkOut)
		})
		It("lists every partition in the host", func() {
			pl, err := b.GetAllPartitions()
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pl)).To(Equal(3))
		})
		It("fails on malformed output", func() {
			json = `{"unrelated": []}`
			_, err := b.GetAllPartitions()
			Expect(err).To(HaveOccurred())
		})
	})
	Describe("GetDisks", func() {
		BeforeEach(func() {
			json = disksLsblkOut
		})
		It("lists disk devices only", func() {
			disks, err := b.GetDisks()
			Expect(err).NotTo(HaveOccurred())
			Expect(len(disks)).To(Equal(2))
			Expect(disks[0].Path).To(Equal("/dev/sda"))
			Expect(disks[0].Model).To(Equal("Samsung SSD 870"))
			Expect(disks[1].Path).To(Equal("/dev/nvme0n1"))
		})
		It("lsblk call fails", func() {
			lsblkErr = fmt.Errorf("new lsblk error")
			_, err := b.GetDisks()
			Expect(err).To(HaveOccurred())
		})
	})
})
