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

package vfs

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	govfs "github.com/twpayne/go-vfs/v4"
)

// FS is the filesystem abstraction threaded through every component, so
// tests can run against an in-memory tree.
type FS = govfs.FS

const (
	DirPerm  = os.FileMode(0755)
	FilePerm = os.FileMode(0644)
)

// OSFS returns the host filesystem.
func OSFS() FS {
	return govfs.OSFS
}

// MkdirAll creates the given directory and any missing parents.
func MkdirAll(fs FS, path string, perm os.FileMode) error {
	return govfs.MkdirAll(fs, path, perm)
}

// Exists checks whether the given path exists.
func Exists(fs FS, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsDir checks whether the given path is a directory.
func IsDir(fs FS, path string) (bool, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// CopyFile copies src to dst. If dst is an existing directory the file is
// copied into it keeping the source base name.
func CopyFile(fs FS, src, dst string) error {
	if dir, _ := IsDir(fs, dst); dir {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// TempDir creates a uniquely named directory under dir with the given
// prefix and returns its path.
func TempDir(fs FS, dir, prefix string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b)))
	if err := MkdirAll(fs, path, DirPerm); err != nil {
		return "", err
	}
	return path, nil
}

// LoadEnvFile parses a shell style KEY=value file such as /etc/os-release
// or /etc/default/grub.
func LoadEnvFile(fs FS, path string) (map[string]string, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, err
	}

	return vars, nil
}
