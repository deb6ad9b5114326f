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

package action

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Gautam9981/VoidInstall/internal/cli/cmd"
	"github.com/Gautam9981/VoidInstall/pkg/installer"
	"github.com/Gautam9981/VoidInstall/pkg/prompt"
)

// Install runs the interactive installation flow.
func Install(ctx *cli.Context) error {
	s, err := cmd.System(ctx)
	if err != nil {
		return err
	}
	args := &cmd.InstallArgs

	opts := []installer.Opts{
		installer.WithWorkRoot(args.WorkRoot),
		installer.WithBootloader(args.Bootloader),
	}
	if args.ForceRemovable {
		opts = append(opts, installer.WithForceRemovable())
	}
	p := prompt.New()
	inst := installer.New(s, p, opts...)

	d, cfg, err := inst.Interview()
	if err != nil {
		return fmt.Errorf("install interview failed: %w", err)
	}

	if err = inst.Run(d, cfg); err != nil {
		if errors.Is(err, installer.ErrAborted) {
			return cli.Exit(err.Error(), 1)
		}
		s.Logger().Error("Installation failed: %s", err.Error())
		return err
	}

	reboot, err := p.AskYesNo("Reboot now", false)
	if err == nil && reboot {
		if _, err = s.Runner().Run("reboot"); err != nil {
			s.Logger().Warn("Could not reboot: %s", err.Error())
		}
	}
	return nil
}
