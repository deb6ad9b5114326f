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

package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// InstallFlags contains the flags for the install command.
type InstallFlags struct {
	WorkRoot       string
	Bootloader     string
	ForceRemovable bool
}

// InstallArgs holds the parsed install command flags.
var InstallArgs InstallFlags

// NewInstallCommand creates the install command.
func NewInstallCommand(appName string, action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Run the interactive installation",
		UsageText: fmt.Sprintf("%s install [OPTIONS]", appName),
		Action:    action,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "work-root",
				Usage:       "Directory the target filesystems are assembled under",
				Value:       "/mnt",
				Destination: &InstallArgs.WorkRoot,
			},
			&cli.StringFlag{
				Name:        "bootloader",
				Usage:       "Bootloader to install (grub, none)",
				Value:       "grub",
				Destination: &InstallArgs.Bootloader,
			},
			&cli.BoolFlag{
				Name:        "force-removable",
				Usage:       "Install the bootloader to the removable media path",
				Destination: &InstallArgs.ForceRemovable,
			},
		},
	}
}
