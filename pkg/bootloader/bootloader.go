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

package bootloader

import (
	"errors"
	"fmt"

	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/deployment"
	"github.com/Gautam9981/VoidInstall/pkg/encryption"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

// Bootloader makes the installed system bootable. The chroot is expected
// to be prepared by the caller, layout is nil for unencrypted setups.
type Bootloader interface {
	Install(d *deployment.Deployment, ch *chroot.Chroot, layout *encryption.Layout) error
}

const (
	BootNone = "none"
	BootGrub = "grub"
)

type None struct {
	s *sys.System
}

func NewNone(s *sys.System) *None {
	return &None{s}
}

func (n *None) Install(_ *deployment.Deployment, _ *chroot.Chroot, _ *encryption.Layout) error {
	n.s.Logger().Info("Skipping bootloader installation")
	return nil
}

func New(name string, s *sys.System) (Bootloader, error) {
	switch name {
	case BootNone:
		return NewNone(s), nil
	case BootGrub:
		return NewGrub(s), nil
	}

	return nil, fmt.Errorf("new bootloader '%s': %w", name, errors.ErrUnsupported)
}
