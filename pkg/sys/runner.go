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
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Gautam9981/VoidInstall/pkg/log"
)

// Runner executes external commands. Every invocation and its exit status
// is logged before any error is returned, so a failed run can be diagnosed
// without repeating it at a higher verbosity.
type Runner interface {
	Run(cmd string, args ...string) ([]byte, error)
	RunContext(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunInput feeds the given string to the command's standard input,
	// used for passphrase driven tools like cryptsetup.
	RunInput(input string, cmd string, args ...string) ([]byte, error)
	// RunInteractive attaches the command to the calling terminal, used
	// for full screen tools like cfdisk.
	RunInteractive(cmd string, args ...string) error
	RunContextParseOutput(ctx context.Context, stdoutH, stderrH func(string), cmd string, args ...string) error
}

type realRunner struct {
	logger log.Logger
}

var _ Runner = (*realRunner)(nil)

func (r realRunner) Run(cmd string, args ...string) ([]byte, error) {
	return r.RunContext(context.Background(), cmd, args...)
}

func (r realRunner) RunContext(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	r.logger.Info("Running: %s %s", cmd, strings.Join(args, " "))
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	r.logExit(cmd, err)
	return out, err
}

func (r realRunner) RunInput(input string, cmd string, args ...string) ([]byte, error) {
	r.logger.Info("Running: %s %s", cmd, strings.Join(args, " "))
	command := exec.Command(cmd, args...)
	command.Stdin = strings.NewReader(input)
	out, err := command.CombinedOutput()
	r.logExit(cmd, err)
	return out, err
}

func (r realRunner) RunInteractive(cmd string, args ...string) error {
	r.logger.Info("Running: %s %s", cmd, strings.Join(args, " "))
	command := exec.Command(cmd, args...)
	command.Stdin = os.Stdin
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr
	err := command.Run()
	r.logExit(cmd, err)
	return err
}

func (r realRunner) RunContextParseOutput(ctx context.Context, stdoutH, stderrH func(string), cmd string, args ...string) error {
	r.logger.Info("Running: %s %s", cmd, strings.Join(args, " "))
	command := exec.CommandContext(ctx, cmd, args...)

	stdout, err := command.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		return err
	}

	if err = command.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			stdoutH(scanner.Text())
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrH(scanner.Text())
		}
	}()
	wg.Wait()

	err = command.Wait()
	r.logExit(cmd, err)
	return err
}

func (r realRunner) logExit(cmd string, err error) {
	if err == nil {
		r.logger.Debug("'%s' exited with status 0", cmd)
		return
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		r.logger.Error("'%s' exited with status %d", cmd, exitErr.ExitCode())
		return
	}
	r.logger.Error("'%s' failed to run: %s", cmd, err.Error())
}
