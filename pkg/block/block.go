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

package block

// Partition describes a single partition device as reported by the host.
type Partition struct {
	Label       string
	Size        uint
	FileSystem  string
	UUID        string
	MountPoints []string
	Path        string
	Disk        string
}

type PartitionList []*Partition

// Disk describes a whole disk device candidate for installation.
type Disk struct {
	Name  string
	Path  string
	Size  uint64
	Model string
}

// Device queries the host block device state.
type Device interface {
	GetAllPartitions() (PartitionList, error)
	GetDevicePartitions(device string) (PartitionList, error)
	GetPartitionFS(partition string) (string, error)
	GetDisks() ([]*Disk, error)
}

// GetPartitionByPath returns the partition matching the given device path,
// nil if not listed.
func (pl PartitionList) GetPartitionByPath(path string) *Partition {
	for _, p := range pl {
		if p.Path == path {
			return p
		}
	}
	return nil
}
