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

package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gautam9981/VoidInstall/pkg/sys"
)

// Runner is a test double recording every command invocation. SideEffect,
// when set, decides the output and error per command.
type Runner struct {
	ReturnValue []byte
	ReturnError error
	SideEffect  func(command string, args ...string) ([]byte, error)

	mu     sync.Mutex
	cmds   [][]string
	inputs []string
}

var _ sys.Runner = (*Runner)(nil)

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Run(cmd string, args ...string) ([]byte, error) {
	r.record(cmd, args, "")
	return r.dispatch(cmd, args...)
}

func (r *Runner) RunContext(_ context.Context, cmd string, args ...string) ([]byte, error) {
	r.record(cmd, args, "")
	return r.dispatch(cmd, args...)
}

func (r *Runner) RunInput(input string, cmd string, args ...string) ([]byte, error) {
	r.record(cmd, args, input)
	return r.dispatch(cmd, args...)
}

func (r *Runner) RunInteractive(cmd string, args ...string) error {
	r.record(cmd, args, "")
	_, err := r.dispatch(cmd, args...)
	return err
}

func (r *Runner) RunContextParseOutput(_ context.Context, stdoutH, _ func(string), cmd string, args ...string) error {
	r.record(cmd, args, "")
	out, err := r.dispatch(cmd, args...)
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			stdoutH(line)
		}
	}
	return err
}

func (r *Runner) dispatch(cmd string, args ...string) ([]byte, error) {
	if r.SideEffect != nil {
		return r.SideEffect(cmd, args...)
	}
	return r.ReturnValue, r.ReturnError
}

func (r *Runner) record(cmd string, args []string, input string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, append([]string{cmd}, args...))
	r.inputs = append(r.inputs, input)
}

// ClearCmds drops the recorded command history.
func (r *Runner) ClearCmds() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = nil
	r.inputs = nil
}

// Cmds returns the recorded command history.
func (r *Runner) Cmds() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmds
}

// Inputs returns the stdin payload recorded for each invocation, empty
// strings for commands run without input.
func (r *Runner) Inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs
}

// CmdsMatch checks the recorded history starts with the given command
// prefixes, in order and without gaps.
func (r *Runner) CmdsMatch(expected [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(expected) > len(r.cmds) {
		return fmt.Errorf("expected %d commands, %d were run", len(expected), len(r.cmds))
	}
	for i, expect := range expected {
		if !prefixMatch(r.cmds[i], expect) {
			return fmt.Errorf("command %d mismatch: expected '%s', got '%s'",
				i, strings.Join(expect, " "), strings.Join(r.cmds[i], " "))
		}
	}
	return nil
}

// MatchMilestones checks the given command prefixes appear in the recorded
// history in order, allowing other commands in between.
func (r *Runner) MatchMilestones(expected [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 0
	for _, cmd := range r.cmds {
		if next == len(expected) {
			break
		}
		if prefixMatch(cmd, expected[next]) {
			next++
		}
	}
	if next != len(expected) {
		return fmt.Errorf("milestone '%s' never reached", strings.Join(expected[next], " "))
	}
	return nil
}

// IncludesCmds checks each of the given command prefixes was run at least
// once, in any order.
func (r *Runner) IncludesCmds(expected [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, expect := range expected {
		found := false
		for _, cmd := range r.cmds {
			if prefixMatch(cmd, expect) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("command '%s' was not run", strings.Join(expect, " "))
		}
	}
	return nil
}

func prefixMatch(cmd, prefix []string) bool {
	if len(prefix) > len(cmd) {
		return false
	}
	for i, p := range prefix {
		if cmd[i] != p {
			return false
		}
	}
	return true
}
