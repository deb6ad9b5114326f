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

	"github.com/Gautam9981/VoidInstall/pkg/log"
	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

const Usage = "Interactive installer turning a blank disk into a bootable Void Linux system"

// GlobalArgs holds the parsed global flags.
var GlobalArgs struct {
	Debug bool
}

func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "Enable debug output",
			Destination: &GlobalArgs.Debug,
		},
	}
}

// Setup builds the system abstraction every action runs against and
// stashes it in the application metadata.
func Setup(ctx *cli.Context) error {
	var opts []log.Option
	if GlobalArgs.Debug {
		opts = append(opts, log.WithDebugLevel())
	}
	s, err := sys.NewSystem(sys.WithLogger(log.New(opts...)))
	if err != nil {
		return fmt.Errorf("setting up system utilities: %w", err)
	}
	ctx.App.Metadata["system"] = s
	return nil
}

func Teardown(_ *cli.Context) error {
	return nil
}

// System extracts the system abstraction set up before command dispatch.
func System(ctx *cli.Context) (*sys.System, error) {
	if ctx.App.Metadata == nil || ctx.App.Metadata["system"] == nil {
		return nil, fmt.Errorf("error setting up initial configuration")
	}
	return ctx.App.Metadata["system"].(*sys.System), nil
}
