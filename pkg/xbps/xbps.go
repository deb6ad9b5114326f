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

package xbps

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/platform"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

const (
	MirrorBase = "https://repo-default.voidlinux.org/current"

	repoConfDir = "/etc/xbps.d"
)

// BasePackages is the minimal package set every installation receives.
var BasePackages = []string{"base-system", "xorg", "NetworkManager", "elogind"}

// SoundPackages is the pipewire sound stack, installed regardless of the
// desktop choice.
var SoundPackages = []string{
	"alsa-utils", "pipewire", "wireplumber", "sof-firmware", "alsa-pipewire",
}

// RepoURL returns the repository URL serving packages for the given
// architecture. x86_64 lives at the repository root, other architectures
// under their own subdirectory.
func RepoURL(arch string) string {
	if arch == platform.ArchX86_64 {
		return MirrorBase
	}
	return MirrorBase + "/" + arch
}

type Desktop int

const (
	NoDesktop Desktop = iota + 1
	Xfce
	Gnome
	KDE
)

func ParseDesktop(d string) (Desktop, error) {
	switch d {
	case "none":
		return NoDesktop, nil
	case "xfce":
		return Xfce, nil
	case "gnome":
		return Gnome, nil
	case "kde":
		return KDE, nil
	default:
		return Desktop(0), fmt.Errorf("unknown desktop environment: %s", d)
	}
}

func (d Desktop) String() string {
	switch d {
	case NoDesktop:
		return "none"
	case Xfce:
		return "xfce"
	case Gnome:
		return "gnome"
	case KDE:
		return "kde"
	default:
		return "unknown"
	}
}

var (
	_ yaml.Marshaler   = Desktop(0)
	_ yaml.Unmarshaler = (*Desktop)(nil)
)

func (d Desktop) MarshalYAML() (any, error) {
	if str := d.String(); str != "unknown" {
		return str, nil
	}
	return nil, fmt.Errorf("unknown desktop environment: %d", d)
}

func (d *Desktop) UnmarshalYAML(data *yaml.Node) (err error) {
	var desktop string
	if err = data.Decode(&desktop); err != nil {
		return err
	}
	*d, err = ParseDesktop(desktop)
	return err
}

// Packages returns the package set the desktop environment needs on top
// of the base system.
func (d Desktop) Packages() []string {
	switch d {
	case Xfce:
		return []string{
			"xfce4", "xfce4-terminal", "lightdm", "lightdm-gtk3-greeter",
			"gvfs", "thunar-volman", "thunar-archive-plugin",
			"xfce4-pulseaudio-plugin", "network-manager-applet",
		}
	case Gnome:
		return []string{
			"gnome", "gdm", "gnome-tweaks", "gnome-software", "gnome-shell",
			"gnome-terminal", "gvfs", "network-manager-applet",
		}
	case KDE:
		return []string{
			"kde5", "sddm", "konsole", "plasma-workspace", "plasma-desktop",
			"kdeplasma-addons", "kde-cli-tools", "kde-gtk-config",
			"kdeconnect", "dolphin", "ark", "sddm-kcm", "gvfs",
			"network-manager-applet",
		}
	default:
		return nil
	}
}

// DisplayManager returns the runit service to enable for the desktop,
// empty when there is none.
func (d Desktop) DisplayManager() string {
	switch d {
	case Xfce:
		return "lightdm"
	case Gnome:
		return "gdm"
	case KDE:
		return "sddm"
	default:
		return ""
	}
}

// XBPS wraps the xbps package manager targeting an alternate root.
type XBPS struct {
	s    *sys.System
	repo string
}

func New(s *sys.System) *XBPS {
	return &XBPS{
		s:    s,
		repo: RepoURL(s.Platform().Arch),
	}
}

func (x XBPS) Repository() string {
	return x.repo
}

// Install installs the given packages into root, syncing the repository
// index first.
func (x XBPS) Install(root string, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := []string{"-Sy", "-R", x.repo, "-r", root}
	args = append(args, packages...)
	x.s.Logger().Info("Installing packages: %v", packages)
	_, err := x.s.Runner().Run("xbps-install", args...)
	if err != nil {
		return fmt.Errorf("installing packages %v: %w", packages, err)
	}
	return nil
}

// InstallChrooted installs packages from inside the target system through
// the given chrooted shell runner.
func (x XBPS) InstallChrooted(run func(command string) ([]byte, error), packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	_, err := run("xbps-install -Sy " + strings.Join(packages, " "))
	if err != nil {
		return fmt.Errorf("installing packages %v: %w", packages, err)
	}
	return nil
}

// Reconfigure forces the post-install hooks of every package, run inside
// the chroot once the system is configured.
func (x XBPS) Reconfigure(run func(command string) ([]byte, error)) error {
	_, err := run("xbps-reconfigure -fa")
	if err != nil {
		return fmt.Errorf("reconfiguring packages: %w", err)
	}
	return nil
}

// WriteRepoConfs writes the repository configuration of the installed
// system, pointing main, nonfree and multilib at the selected mirror.
// Multilib only exists for x86_64.
func (x XBPS) WriteRepoConfs(root string) error {
	dir := filepath.Join(root, repoConfDir)
	if err := vfs.MkdirAll(x.s.FS(), dir, vfs.DirPerm); err != nil {
		return fmt.Errorf("creating '%s': %w", dir, err)
	}

	confs := map[string]string{
		"00-repository-main.conf":    fmt.Sprintf("repository=%s\n", x.repo),
		"10-repository-nonfree.conf": fmt.Sprintf("repository=%s/nonfree\n", x.repo),
	}
	if x.s.Platform().Arch == platform.ArchX86_64 {
		confs["20-repository-multilib.conf"] = fmt.Sprintf(
			"repository=%s/multilib\nrepository=%s/multilib/nonfree\n", MirrorBase, MirrorBase,
		)
	}
	for name, content := range confs {
		path := filepath.Join(dir, name)
		if err := x.s.FS().WriteFile(path, []byte(content), vfs.FilePerm); err != nil {
			return fmt.Errorf("writing '%s': %w", path, err)
		}
	}
	return nil
}
