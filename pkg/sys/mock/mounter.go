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

package mock

import (
	"fmt"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

// Mounter is a test double keeping an in-memory mount table. Unmounts are
// recorded in call order so teardown sequences can be asserted.
type Mounter struct {
	ErrorOnMount   bool
	ErrorOnUnmount bool
	// ErrorOnMountSource fails only mounts of the given source device.
	ErrorOnMountSource string

	mounts   []sys.MountPoint
	unmounts []string
}

var _ sys.Mounter = (*Mounter)(nil)

func NewMounter() *Mounter {
	return &Mounter{}
}

func (m *Mounter) Mount(source, target, fstype string, options []string) error {
	if m.ErrorOnMount || (m.ErrorOnMountSource != "" && source == m.ErrorOnMountSource) {
		return fmt.Errorf("mount error")
	}
	m.mounts = append(m.mounts, sys.MountPoint{
		Device: source,
		Path:   target,
		Type:   fstype,
		Opts:   options,
	})
	return nil
}

func (m *Mounter) Unmount(target string) error {
	return m.unmount(target)
}

func (m *Mounter) UnmountLazy(target string) error {
	return m.unmount(target)
}

func (m *Mounter) unmount(target string) error {
	if m.ErrorOnUnmount {
		return fmt.Errorf("unmount error")
	}
	m.unmounts = append(m.unmounts, target)
	for i, mnt := range m.mounts {
		if mnt.Path == target {
			m.mounts = append(m.mounts[:i], m.mounts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mounter) List() ([]sys.MountPoint, error) {
	return m.mounts, nil
}

func (m *Mounter) IsMountPoint(path string) (bool, error) {
	for _, mnt := range m.mounts {
		if mnt.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// AddMount seeds the fake mount table without going through Mount.
func (m *Mounter) AddMount(device, path, fstype string, opts ...string) {
	m.mounts = append(m.mounts, sys.MountPoint{
		Device: device,
		Path:   path,
		Type:   fstype,
		Opts:   opts,
	})
}

// Unmounts returns every unmounted path in call order.
func (m *Mounter) Unmounts() []string {
	return m.unmounts
}
