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

package sys

import (
	"golang.org/x/sys/unix"
	"k8s.io/mount-utils"
)

// MountPoint is a single entry of the host mount table.
type MountPoint struct {
	Device string
	Path   string
	Type   string
	Opts   []string
}

// Mounter handles mount table operations.
type Mounter interface {
	Mount(source, target, fstype string, options []string) error
	Unmount(target string) error
	// UnmountLazy detaches the mount point even if it is busy, so teardown
	// never blocks on open descriptors.
	UnmountLazy(target string) error
	List() ([]MountPoint, error)
	IsMountPoint(path string) (bool, error)
}

type mounter struct {
	m mount.Interface
}

var _ Mounter = (*mounter)(nil)

// NewMounter returns a Mounter backed by the host mount table.
func NewMounter() Mounter {
	return &mounter{m: mount.New("")}
}

func (mt mounter) Mount(source, target, fstype string, options []string) error {
	return mt.m.Mount(source, target, fstype, options)
}

func (mt mounter) Unmount(target string) error {
	return mt.m.Unmount(target)
}

func (mt mounter) UnmountLazy(target string) error {
	return unix.Unmount(target, unix.MNT_FORCE|unix.MNT_DETACH)
}

func (mt mounter) List() ([]MountPoint, error) {
	mnts, err := mt.m.List()
	if err != nil {
		return nil, err
	}
	list := make([]MountPoint, 0, len(mnts))
	for _, mnt := range mnts {
		list = append(list, MountPoint{
			Device: mnt.Device,
			Path:   mnt.Path,
			Type:   mnt.Type,
			Opts:   mnt.Opts,
		})
	}
	return list, nil
}

func (mt mounter) IsMountPoint(path string) (bool, error) {
	return mt.m.IsMountPoint(path)
}
