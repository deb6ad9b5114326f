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

package lsblk

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gautam9981/VoidInstall/pkg/block"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

type lsDevice struct {
	runner sys.Runner
}

func NewLsDevice(s *sys.System) *lsDevice { //nolint:revive
	return &lsDevice{runner: s.Runner()}
}

var _ block.Device = (*lsDevice)(nil)

const partitionColumns = "LABEL,UUID,SIZE,FSTYPE,MOUNTPOINTS,PATH,PKNAME,TYPE"

type jPart struct {
	Label       string   `json:"label,omitempty"`
	UUID        string   `json:"uuid,omitempty"`
	Size        uint64   `json:"size,omitempty"`
	FS          string   `json:"fstype,omitempty"`
	MountPoints []string `json:"mountpoints,omitempty"`
	Path        string   `json:"path,omitempty"`
	Disk        string   `json:"pkname,omitempty"`
	Type        string   `json:"type,omitempty"`
}

type jParts []*block.Partition

func (p jPart) Partition() *block.Partition {
	// Converts B to MiB
	return &block.Partition{
		Label:       p.Label,
		UUID:        p.UUID,
		Size:        uint(p.Size / (1024 * 1024)),
		FileSystem:  p.FS,
		MountPoints: nonEmpty(p.MountPoints),
		Path:        p.Path,
		Disk:        p.Disk,
	}
}

func nonEmpty(strs []string) []string {
	var out []string
	for _, s := range strs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *jParts) UnmarshalJSON(data []byte) error {
	var parts []jPart

	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}

	var partitions jParts
	for _, part := range parts {
		// filter only partition, crypt or lvm devices
		if part.Type == "part" || part.Type == "crypt" || part.Type == "lvm" || part.Type == "loop" {
			partitions = append(partitions, part.Partition())
		}
	}
	*p = partitions
	return nil
}

func blockDevices(lsblkOut []byte) (*json.RawMessage, error) {
	var objmap map[string]*json.RawMessage
	err := json.Unmarshal(lsblkOut, &objmap)
	if err != nil {
		return nil, err
	}

	raw, ok := objmap["blockdevices"]
	if !ok {
		return nil, errors.New("invalid json object, no 'blockdevices' key found")
	}
	return raw, nil
}

func unmarshalLsblk(lsblkOut []byte) (block.PartitionList, error) {
	raw, err := blockDevices(lsblkOut)
	if err != nil {
		return nil, err
	}

	var parts jParts
	err = json.Unmarshal(*raw, &parts)
	if err != nil {
		return nil, err
	}

	return block.PartitionList(parts), nil
}

// GetAllPartitions gets a slice of all partition devices found in the host.
func (l lsDevice) GetAllPartitions() (block.PartitionList, error) {
	out, err := l.runner.Run("lsblk", "-p", "-b", "-n", "-J", "--output", partitionColumns)
	if err != nil {
		return nil, err
	}

	return unmarshalLsblk(out)
}

// GetDevicePartitions gets a slice of partitions found in the given device.
// If the device is a disk it will list all disk partitions, if the device is
// already a partition it will simply list a single partition.
func (l lsDevice) GetDevicePartitions(device string) (block.PartitionList, error) {
	out, err := l.runner.Run("lsblk", "-p", "-b", "-n", "-J", "--output", partitionColumns, device)
	if err != nil {
		return nil, err
	}

	return unmarshalLsblk(out)
}

// GetPartitionFS gets the filesystem type for the given partition device. If
// the given device can't be parsed as a single partition by lsblk it errors
// out.
func (l lsDevice) GetPartitionFS(partition string) (string, error) {
	pLst, err := l.GetDevicePartitions(partition)
	if err != nil {
		return "", err
	}
	if len(pLst) != 1 {
		return "", fmt.Errorf("could not parse a single partition: %v", pLst)
	}
	return pLst[0].FileSystem, nil
}

// GetDisks lists whole disk devices, the candidates for an installation
// target.
func (l lsDevice) GetDisks() ([]*block.Disk, error) {
	out, err := l.runner.Run("lsblk", "-d", "-p", "-b", "-J", "--output", "NAME,PATH,SIZE,MODEL,TYPE")
	if err != nil {
		return nil, err
	}

	raw, err := blockDevices(out)
	if err != nil {
		return nil, err
	}

	devices := []struct {
		Name  string `json:"name,omitempty"`
		Path  string `json:"path,omitempty"`
		Size  uint64 `json:"size,omitempty"`
		Model string `json:"model,omitempty"`
		Type  string `json:"type,omitempty"`
	}{}
	err = json.Unmarshal(*raw, &devices)
	if err != nil {
		return nil, err
	}

	var disks []*block.Disk
	for _, dev := range devices {
		if dev.Type != "disk" {
			continue
		}
		disks = append(disks, &block.Disk{
			Name:  dev.Name,
			Path:  dev.Path,
			Size:  dev.Size,
			Model: dev.Model,
		})
	}
	return disks, nil
}
