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

package chroot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

const efivarsPath = "/sys/firmware/efi/efivars"

// Chroot represents a target root with the host pseudo filesystems bound
// into it. Prepare and Close are symmetric, every mount set up by Prepare
// is torn down by Close in reverse order.
type Chroot struct {
	s            *sys.System
	path         string
	defaultBinds []string
	activeMounts []string
}

type Opts func(c *Chroot)

// WithoutDefaultBinds leaves the host pseudo filesystems out, used for
// callbacks that only touch plain files.
func WithoutDefaultBinds() Opts {
	return func(c *Chroot) {
		c.defaultBinds = nil
	}
}

func NewChroot(s *sys.System, path string, opts ...Opts) *Chroot {
	c := &Chroot{
		s:            s,
		path:         path,
		defaultBinds: []string{"/dev", "/dev/pts", "/proc", "/sys"},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Path returns the target root directory on the host.
func (c *Chroot) Path() string {
	return c.path
}

// Prepare binds the host pseudo filesystems into the target root and
// mounts a fresh tmpfs on /run. On UEFI hosts efivars is included so
// efibootmgr works inside the chroot. Each mount is independent, a failed
// one is logged and skipped so a single missing pseudo filesystem does not
// block the remaining binds. Close releases exactly the mounts that
// succeeded.
func (c *Chroot) Prepare() error {
	if len(c.activeMounts) > 0 {
		return fmt.Errorf("chroot '%s' already prepared", c.path)
	}

	binds := c.defaultBinds
	if len(binds) > 0 {
		if ok, _ := vfs.IsDir(c.s.FS(), efivarsPath); ok {
			binds = append(binds, efivarsPath)
		}
	}

	for _, bind := range binds {
		target := filepath.Join(c.path, bind)
		if err := vfs.MkdirAll(c.s.FS(), target, vfs.DirPerm); err != nil {
			c.s.Logger().Warn("Could not create bind target '%s': %s", target, err.Error())
			continue
		}
		if err := c.s.Mounter().Mount(bind, target, "bind", []string{"bind"}); err != nil {
			c.s.Logger().Warn("Could not bind '%s' into chroot: %s", bind, err.Error())
			continue
		}
		c.activeMounts = append(c.activeMounts, target)
	}

	if len(binds) > 0 {
		target := filepath.Join(c.path, "/run")
		if err := vfs.MkdirAll(c.s.FS(), target, vfs.DirPerm); err != nil {
			c.s.Logger().Warn("Could not create '%s': %s", target, err.Error())
			return nil
		}
		if err := c.s.Mounter().Mount("tmpfs", target, "tmpfs", []string{"rw", "nosuid", "nodev"}); err != nil {
			c.s.Logger().Warn("Could not mount tmpfs on '%s': %s", target, err.Error())
			return nil
		}
		c.activeMounts = append(c.activeMounts, target)
	}
	return nil
}

// Close unmounts everything Prepare set up, deepest mounts first.
func (c *Chroot) Close() error {
	var failures []string
	for i := len(c.activeMounts) - 1; i >= 0; i-- {
		target := c.activeMounts[i]
		c.s.Logger().Debug("Unmounting '%s'", target)
		if err := c.s.Mounter().UnmountLazy(target); err != nil {
			c.s.Logger().Error("Could not unmount '%s': %s", target, err.Error())
			failures = append(failures, target)
		}
	}
	c.activeMounts = nil
	if len(failures) > 0 {
		return fmt.Errorf("could not unmount: %s", strings.Join(failures, ", "))
	}
	return nil
}

// Run executes the given shell command line inside the chroot through
// /bin/sh. Single quotes in the command line are escaped so arbitrary
// values can be interpolated safely.
func (c *Chroot) Run(command string) ([]byte, error) {
	return c.s.Runner().Run("chroot", c.path, "/bin/sh", "-c", command)
}

// RunInput is Run with a stdin payload, used for passwd style tools.
func (c *Chroot) RunInput(input, command string) ([]byte, error) {
	return c.s.Runner().RunInput(input, "chroot", c.path, "/bin/sh", "-c", command)
}

// Quote wraps the value in single quotes for safe interpolation into a
// shell command line.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// RunCallback executes the callback with the process root switched to the
// chroot path, restoring the original root before returning.
func (c *Chroot) RunCallback(callback func() error) (err error) {
	oldRoot, err := c.s.FS().OpenFile("/", 0, 0)
	if err != nil {
		return fmt.Errorf("opening current root: %w", err)
	}
	defer func() {
		_ = oldRoot.Close()
	}()

	if err = c.s.Syscall().Chroot(c.path); err != nil {
		return fmt.Errorf("entering chroot '%s': %w", c.path, err)
	}
	defer func() {
		if fdErr := c.s.Syscall().Fchdir(int(oldRoot.Fd())); fdErr != nil {
			err = fmt.Errorf("restoring root, fchdir: %w", fdErr)
			return
		}
		if chErr := c.s.Syscall().Chroot("."); chErr != nil {
			err = fmt.Errorf("restoring root, chroot: %w", chErr)
		}
	}()

	if err = c.s.Syscall().Chdir("/"); err != nil {
		return fmt.Errorf("changing directory inside chroot: %w", err)
	}
	return callback()
}

// ChrootedCallback runs the callback inside a prepared chroot at the given
// root, extending the default binds with the given ones.
func ChrootedCallback(s *sys.System, path string, binds []string, callback func() error) (err error) {
	c := NewChroot(s, path)
	c.defaultBinds = append(c.defaultBinds, binds...)
	if err = c.Prepare(); err != nil {
		return fmt.Errorf("preparing chroot '%s': %w", path, err)
	}
	defer func() {
		if cErr := c.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()
	return c.RunCallback(callback)
}
