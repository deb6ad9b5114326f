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

package deployment

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
	"github.com/Gautam9981/VoidInstall/pkg/sys/vfs"
)

type MiB uint

const (
	EfiLabel     = "EFI"
	EfiMnt       = "/boot/efi"
	EfiSize  MiB = 512

	BootLabel     = "BOOT"
	BootMnt       = "/boot"
	BootSize  MiB = 1024

	RootLabel            = "VOID"
	RootMnt              = "/"
	RootCapSize      MiB = 20480
	AllAvailableSize MiB = 0

	BiosBootSize MiB = 1

	SwapLabel = "SWAP"

	DefaultMapperName  = "cryptroot"
	DefaultVolumeGroup = "vg0"

	deploymentFile = "/etc/voidinstall/deployment.yaml"

	Unknown = "unknown"
)

type Firmware int

const (
	UEFI Firmware = iota + 1
	BIOS
)

func ParseFirmware(f string) (Firmware, error) {
	switch f {
	case "uefi":
		return UEFI, nil
	case "bios":
		return BIOS, nil
	default:
		return Firmware(0), fmt.Errorf("unknown firmware mode: %s", f)
	}
}

func (f Firmware) String() string {
	switch f {
	case UEFI:
		return "uefi"
	case BIOS:
		return "bios"
	default:
		return Unknown
	}
}

var (
	_ yaml.Marshaler   = Firmware(0)
	_ yaml.Unmarshaler = (*Firmware)(nil)
)

func (f Firmware) MarshalYAML() (any, error) {
	if str := f.String(); str != Unknown {
		return str, nil
	}
	return nil, fmt.Errorf("unknown firmware mode: %d", f)
}

func (f *Firmware) UnmarshalYAML(data *yaml.Node) (err error) {
	var fw string
	if err = data.Decode(&fw); err != nil {
		return err
	}
	*f, err = ParseFirmware(fw)
	return err
}

type PartRole int

const (
	EFI PartRole = iota + 1
	BiosBoot
	Boot
	Root
	Swap
)

func ParseRole(role string) (PartRole, error) {
	switch role {
	case "efi":
		return EFI, nil
	case "bios-boot":
		return BiosBoot, nil
	case "boot":
		return Boot, nil
	case "root":
		return Root, nil
	case "swap":
		return Swap, nil
	default:
		return PartRole(0), fmt.Errorf("unknown partition role: %s", role)
	}
}

func (p PartRole) String() string {
	switch p {
	case EFI:
		return "efi"
	case BiosBoot:
		return "bios-boot"
	case Boot:
		return "boot"
	case Root:
		return "root"
	case Swap:
		return "swap"
	default:
		return Unknown
	}
}

// TypeCode returns the sgdisk partition type code for the role.
func (p PartRole) TypeCode() string {
	switch p {
	case EFI:
		return "ef00"
	case BiosBoot:
		return "ef02"
	case Swap:
		return "8200"
	default:
		return "8300"
	}
}

var (
	_ yaml.Marshaler   = PartRole(0)
	_ yaml.Unmarshaler = (*PartRole)(nil)
)

func (p PartRole) MarshalYAML() (any, error) {
	if str := p.String(); str != Unknown {
		return str, nil
	}
	return nil, fmt.Errorf("unknown partition role: %d", p)
}

func (p *PartRole) UnmarshalYAML(data *yaml.Node) (err error) {
	var role string
	if err = data.Decode(&role); err != nil {
		return err
	}
	*p, err = ParseRole(role)
	return err
}

type FileSystem int

const (
	Ext4 FileSystem = iota + 1
	VFat
	SwapFS
	NoFS
)

func ParseFileSystem(f string) (FileSystem, error) {
	switch f {
	case "ext4":
		return Ext4, nil
	case "vfat":
		return VFat, nil
	case "swap":
		return SwapFS, nil
	case "none":
		return NoFS, nil
	default:
		return FileSystem(0), fmt.Errorf("filesystem not supported: %s", f)
	}
}

func (f FileSystem) String() string {
	switch f {
	case Ext4:
		return "ext4"
	case VFat:
		return "vfat"
	case SwapFS:
		return "swap"
	case NoFS:
		return "none"
	default:
		return Unknown
	}
}

var (
	_ yaml.Marshaler   = FileSystem(0)
	_ yaml.Unmarshaler = (*FileSystem)(nil)
)

func (f FileSystem) MarshalYAML() (any, error) {
	if str := f.String(); str != Unknown {
		return str, nil
	}
	return nil, fmt.Errorf("unknown filesystem: %d", f)
}

func (f *FileSystem) UnmarshalYAML(data *yaml.Node) (err error) {
	var fs string
	if err = data.Decode(&fs); err != nil {
		return err
	}
	*f, err = ParseFileSystem(fs)
	return err
}

// Partition is a single entry of the on-disk creation plan, ordered by
// Index.
type Partition struct {
	Index      int        `yaml:"index"`
	Label      string     `yaml:"label,omitempty"`
	Role       PartRole   `yaml:"role"`
	FileSystem FileSystem `yaml:"fileSystem,omitempty"`
	// Size in MiB, 0 meaning all the remaining space
	Size       MiB    `yaml:"size,omitempty"`
	MountPoint string `yaml:"mountPoint,omitempty"`
}

type Partitions []*Partition

// DiskTarget is the selected installation disk. Immutable once chosen.
type DiskTarget struct {
	Device   string   `yaml:"target,omitempty"`
	Firmware Firmware `yaml:"firmware"`
	VM       bool     `yaml:"virtualMachine,omitempty"`
}

// EncryptionConfig describes the optional block encryption layer wrapping
// the root partition.
type EncryptionConfig struct {
	Enabled     bool   `yaml:"enabled"`
	UseLVM      bool   `yaml:"useLVM,omitempty"`
	MapperName  string `yaml:"mapperName,omitempty"`
	VolumeGroup string `yaml:"volumeGroup,omitempty"`
}

type SwapConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    MiB  `yaml:"size,omitempty"`
}

type BootConfig struct {
	// ForceRemovable prefers the removable media bootloader install over
	// registering a named firmware boot entry.
	ForceRemovable bool `yaml:"forceRemovable,omitempty"`
}

type Deployment struct {
	Disk         DiskTarget       `yaml:"disk"`
	Partitions   Partitions       `yaml:"partitions"`
	Encryption   EncryptionConfig `yaml:"encryption"`
	Swap         SwapConfig       `yaml:"swap"`
	BootConfig   BootConfig       `yaml:"bootloader"`
	Repositories []string         `yaml:"repositories,omitempty"`
}

type Opt func(d *Deployment)

type SanitizeDeployment func(*sys.System, *Deployment) error

// name returns the sanitizer method name using reflection. This can
// be used to identify them inside the sanitizers slice.
func (s SanitizeDeployment) name() string {
	fullName := runtime.FuncForPC(reflect.ValueOf(s).Pointer()).Name()

	lastDotIndex := strings.LastIndex(fullName, ".")
	if lastDotIndex == -1 {
		return fullName
	}

	return fullName[lastDotIndex+1:]
}

var sanitizers = []SanitizeDeployment{
	checkRootPart,
	checkEfiPart,
	checkPartitionIndices,
	checkAllAvailableSize,
	checkSwapPart,
	checkEncryption,
	CheckDiskDevice,
}

// GetPartition returns the first partition with the given role, nil if not
// found.
func (d Deployment) GetPartition(role PartRole) *Partition {
	for _, part := range d.Partitions {
		if part != nil && part.Role == role {
			return part
		}
	}
	return nil
}

func (d Deployment) GetRootPartition() *Partition {
	return d.GetPartition(Root)
}

func (d Deployment) GetEfiPartition() *Partition {
	return d.GetPartition(EFI)
}

func (d Deployment) GetSwapPartition() *Partition {
	return d.GetPartition(Swap)
}

// Sanitize checks the consistency of the current deployment. ExcludeChecks
// is used to disable any given public sanitizer.
func (d *Deployment) Sanitize(s *sys.System, excludeChecks ...SanitizeDeployment) error {
	var excluded []string
	for _, exclude := range excludeChecks {
		excluded = append(excluded, exclude.name())
	}
	for _, sanitize := range sanitizers {
		if slices.Contains(excluded, sanitize.name()) {
			continue
		}
		if err := sanitize(s, d); err != nil {
			return err
		}
	}
	return nil
}

// DeepCopy returns a deep copy of the current deployment based on yaml
// marshalling.
func (d Deployment) DeepCopy() (*Deployment, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, err
	}

	dep := &Deployment{}
	err = yaml.Unmarshal(data, dep)
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// WriteDeploymentFile serializes the deployment into the target root,
// omitting runtime only information such as the device path.
func (d *Deployment) WriteDeploymentFile(s *sys.System, root string) error {
	path := filepath.Join(root, deploymentFile)
	if ok, _ := vfs.Exists(s.FS(), path); !ok {
		err := vfs.MkdirAll(s.FS(), filepath.Dir(path), vfs.DirPerm)
		if err != nil {
			return fmt.Errorf("creating deployment directory: %w", err)
		}
	} else {
		err := s.FS().Remove(path)
		if err != nil {
			return fmt.Errorf("removing previous deployment file: %w", err)
		}
	}

	dep, err := d.DeepCopy()
	if err != nil {
		return fmt.Errorf("failed creating a deployment deep copy: %w", err)
	}

	// the device name is runtime information which might not be consistent
	// across reboots, no need to store it
	dep.Disk.Device = ""

	data, err := yaml.Marshal(dep)
	if err != nil {
		return fmt.Errorf("could not re-marshal deployment: %w", err)
	}

	dataStr := "# self-generated content, do not edit\n\n" + string(data)

	err = s.FS().WriteFile(path, []byte(dataStr), 0444)
	if err != nil {
		return fmt.Errorf("writing deployment file '%s': %w", path, err)
	}
	return nil
}

// New returns a deployment with the given options applied on top of the
// defaults.
func New(opts ...Opt) *Deployment {
	d := &Deployment{
		Encryption: EncryptionConfig{
			MapperName:  DefaultMapperName,
			VolumeGroup: DefaultVolumeGroup,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithDisk(disk DiskTarget) Opt {
	return func(d *Deployment) {
		d.Disk = disk
	}
}

func WithEncryption(useLVM bool) Opt {
	return func(d *Deployment) {
		d.Encryption.Enabled = true
		d.Encryption.UseLVM = useLVM
	}
}

func WithSwap(size MiB) Opt {
	return func(d *Deployment) {
		d.Swap = SwapConfig{Enabled: true, Size: size}
	}
}

// checkRootPart verifies there is exactly one root partition and forces
// mandatory values.
func checkRootPart(s *sys.System, d *Deployment) error {
	var found bool
	for _, part := range d.Partitions {
		if part.Role == Root && !found {
			found = true
			if part.MountPoint != RootMnt {
				s.Logger().Warn("custom mountpoints for the root partition are not supported")
				s.Logger().Info("root partition mountpoint set to default '%s'", RootMnt)
				part.MountPoint = RootMnt
			}
			if part.Label == "" {
				part.Label = RootLabel
			}
			if part.FileSystem.String() == Unknown {
				part.FileSystem = Ext4
			}
		} else if part.Role == Root {
			return fmt.Errorf("multiple 'root' partitions defined, there must be only one")
		}
	}
	if !found {
		return fmt.Errorf("no 'root' partition defined")
	}
	return nil
}

// checkEfiPart verifies the EFI partition is present exactly for UEFI
// targets and forces mandatory values.
func checkEfiPart(s *sys.System, d *Deployment) error {
	var found bool
	for _, part := range d.Partitions {
		if part.Role == EFI && !found {
			found = true
			if d.Disk.Firmware != UEFI {
				return fmt.Errorf("'efi' partition defined for a non UEFI target")
			}
			if part.FileSystem != VFat {
				s.Logger().Warn("filesystem types different to vfat are not supported for the efi partition")
				s.Logger().Info("efi partition set to be formatted with vfat")
				part.FileSystem = VFat
			}
			if part.MountPoint != EfiMnt {
				s.Logger().Warn("custom mountpoints for the efi partition are not supported")
				s.Logger().Info("efi partition mountpoint set to default '%s'", EfiMnt)
				part.MountPoint = EfiMnt
			}
			if part.Label == "" {
				part.Label = EfiLabel
			}
			if part.Size < EfiSize {
				s.Logger().Warn("efi partition size cannot be less than %dMiB", EfiSize)
				s.Logger().Info("efi partition size set to %dMiB", EfiSize)
				part.Size = EfiSize
			}
		} else if part.Role == EFI {
			return fmt.Errorf("multiple 'efi' partitions defined, there must be only one")
		}
	}
	if !found && d.Disk.Firmware == UEFI {
		return fmt.Errorf("no 'efi' partition defined for a UEFI target")
	}
	return nil
}

// checkPartitionIndices ensures indices are strictly increasing and match
// the on-disk creation order.
func checkPartitionIndices(_ *sys.System, d *Deployment) error {
	last := 0
	for _, part := range d.Partitions {
		if part.Index <= last {
			return fmt.Errorf("partition indices must be strictly increasing, got %d after %d", part.Index, last)
		}
		last = part.Index
	}
	return nil
}

// checkAllAvailableSize ensures only the last partition is eventually set
// to be as big as all the available size in disk.
func checkAllAvailableSize(_ *sys.System, d *Deployment) error {
	pNum := len(d.Partitions)
	for i, part := range d.Partitions {
		if i < pNum-1 && part.Size == AllAvailableSize {
			return fmt.Errorf("only the last partition can be defined to be as big as all the available size in disk")
		}
	}
	return nil
}

// checkSwapPart ensures a swap partition is declared exactly when swap is
// requested without LVM. An LVM layout carves swap out of the volume group
// instead of the partition table.
func checkSwapPart(_ *sys.System, d *Deployment) error {
	part := d.GetSwapPartition()
	lvmSwap := d.Swap.Enabled && d.Encryption.Enabled && d.Encryption.UseLVM
	if d.Swap.Enabled && !lvmSwap && part == nil {
		return fmt.Errorf("swap requested but no 'swap' partition defined")
	}
	if (!d.Swap.Enabled || lvmSwap) && part != nil {
		return fmt.Errorf("'swap' partition defined but no swap requested on disk")
	}
	return nil
}

// checkEncryption fills encryption defaults.
func checkEncryption(_ *sys.System, d *Deployment) error {
	if !d.Encryption.Enabled {
		return nil
	}
	if d.Encryption.MapperName == "" {
		d.Encryption.MapperName = DefaultMapperName
	}
	if d.Encryption.VolumeGroup == "" {
		d.Encryption.VolumeGroup = DefaultVolumeGroup
	}
	return nil
}

// CheckDiskDevice ensures the target device is defined and exists.
func CheckDiskDevice(s *sys.System, d *Deployment) error {
	if d.Disk.Device == "" {
		return fmt.Errorf("no target device associated with the deployment")
	}
	if ok, _ := vfs.Exists(s.FS(), d.Disk.Device); !ok {
		return fmt.Errorf("device '%s' not found", d.Disk.Device)
	}
	return nil
}
