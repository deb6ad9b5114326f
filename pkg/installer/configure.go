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

package installer

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/chroot"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
	"github.com/Gautam9981/VoidInstall/pkg/xbps"
)

// defaultServices are enabled on every installation.
var defaultServices = []string{"dbus", "NetworkManager", "elogind"}

// configureSystem applies the user configuration inside the chroot:
// hostname, timezone, locale, accounts, sudo and runit services.
func (i *Installer) configureSystem(ch *chroot.Chroot, cfg *Config) error {
	fs := i.s.FS()

	if cfg.Hostname != "" {
		path := filepath.Join(ch.Path(), "/etc/hostname")
		if err := fs.WriteFile(path, []byte(cfg.Hostname+"\n"), vfs.FilePerm); err != nil {
			return fmt.Errorf("writing hostname: %w", err)
		}
	}

	if cfg.Timezone != "" {
		cmd := "ln -sf /usr/share/zoneinfo/" + cfg.Timezone + " /etc/localtime"
		if _, err := ch.Run(cmd); err != nil {
			return fmt.Errorf("setting timezone '%s': %w", cfg.Timezone, err)
		}
	}

	if cfg.Locale != "" {
		if err := i.configureLocale(ch, cfg.Locale); err != nil {
			return err
		}
	}

	if cfg.RootPassword != "" {
		if _, err := ch.RunInput("root:"+cfg.RootPassword, "chpasswd"); err != nil {
			return fmt.Errorf("setting root password: %w", err)
		}
	}

	if cfg.User != nil {
		if err := i.configureUser(ch, cfg.User); err != nil {
			return err
		}
	}

	if err := i.enableServices(ch, cfg.Desktop); err != nil {
		return err
	}

	if _, err := ch.Run("xbps-reconfigure -fa"); err != nil {
		return fmt.Errorf("reconfiguring packages: %w", err)
	}
	return nil
}

// configureLocale enables the glibc locale and sets it as the system
// default. Musl targets carry no libc-locales file, the step is skipped.
func (i *Installer) configureLocale(ch *chroot.Chroot, locale string) error {
	localesFile := filepath.Join(ch.Path(), "/etc/default/libc-locales")
	if ok, _ := vfs.Exists(i.s.FS(), localesFile); ok {
		entry := locale + " UTF-8"
		data, err := i.s.FS().ReadFile(localesFile)
		if err != nil {
			return fmt.Errorf("reading libc-locales: %w", err)
		}
		content := string(data)
		if !containsLine(content, entry) {
			content += "\n" + entry + "\n"
			if err = i.s.FS().WriteFile(localesFile, []byte(content), vfs.FilePerm); err != nil {
				return fmt.Errorf("writing libc-locales: %w", err)
			}
		}
		if _, err = ch.Run("xbps-reconfigure -f glibc-locales"); err != nil {
			i.s.Logger().Warn("Could not rebuild locales: %s", err.Error())
		}
	}

	path := filepath.Join(ch.Path(), "/etc/locale.conf")
	if err := i.s.FS().WriteFile(path, []byte("LANG="+locale+"\n"), vfs.FilePerm); err != nil {
		return fmt.Errorf("writing locale.conf: %w", err)
	}
	return nil
}

func (i *Installer) configureUser(ch *chroot.Chroot, user *UserAccount) error {
	cmd := "useradd -m -G wheel,audio,video,storage " + chroot.Quote(user.Name)
	if _, err := ch.Run(cmd); err != nil {
		return fmt.Errorf("creating user '%s': %w", user.Name, err)
	}
	if user.Password != "" {
		if _, err := ch.RunInput(user.Name+":"+user.Password, "chpasswd"); err != nil {
			return fmt.Errorf("setting password for '%s': %w", user.Name, err)
		}
	}

	sudoers := filepath.Join(ch.Path(), "/etc/sudoers.d/10-wheel")
	if err := vfs.MkdirAll(i.s.FS(), filepath.Dir(sudoers), vfs.DirPerm); err != nil {
		return fmt.Errorf("creating sudoers.d: %w", err)
	}
	err := i.s.FS().WriteFile(sudoers, []byte("%wheel ALL=(ALL:ALL) ALL\n"), 0440)
	if err != nil {
		return fmt.Errorf("writing sudoers rule: %w", err)
	}
	return nil
}

// enableServices links the runit services of the installed system.
// Missing services are logged and skipped, a desktop package set may not
// ship every expected service directory.
func (i *Installer) enableServices(ch *chroot.Chroot, desktop xbps.Desktop) error {
	services := append([]string{}, defaultServices...)
	if dm := desktop.DisplayManager(); dm != "" {
		services = append(services, dm)
	}
	for _, svc := range services {
		cmd := fmt.Sprintf("ln -sf /etc/sv/%s /etc/runit/runsvdir/default/", svc)
		if _, err := ch.Run(cmd); err != nil {
			i.s.Logger().Warn("Could not enable service '%s': %s", svc, err.Error())
		}
	}
	return nil
}

func containsLine(content, line string) bool {
	return slices.Contains(strings.Split(content, "\n"), line)
}
