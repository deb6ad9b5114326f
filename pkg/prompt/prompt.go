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

package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Gautam9981/VoidInstall/pkg/block"
	"github.com/docker/go-units"
)

// Prompter drives the interactive question and answer flow of the
// installer. Input and output streams are injectable for tests.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// readPassword overrides terminal passphrase reading in tests
	readPassword func(fd int) ([]byte, error)
}

type Opts func(p *Prompter)

func WithInput(r io.Reader) Opts {
	return func(p *Prompter) {
		p.in = bufio.NewReader(r)
	}
}

func WithOutput(w io.Writer) Opts {
	return func(p *Prompter) {
		p.out = w
	}
}

func WithPasswordReader(f func(fd int) ([]byte, error)) Opts {
	return func(p *Prompter) {
		p.readPassword = f
	}
}

func New(opts ...Opts) *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Output exposes the output stream so callers can print context around
// a question.
func (p *Prompter) Output() io.Writer {
	return p.out
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Ask prints the question and returns the trimmed answer, falling back to
// def on an empty answer.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskYesNo keeps asking until the answer parses to yes or no.
func (p *Prompter) AskYesNo(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(p.out, "%s [%s]: ", question, hint)
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer 'y' or 'n'.")
	}
}

// ConfirmErase requires the literal word YES before any destructive
// operation touches the disk.
func (p *Prompter) ConfirmErase(device string) (bool, error) {
	fmt.Fprintf(p.out, "\nWARNING: all data on %s will be erased.\n", device)
	fmt.Fprint(p.out, "Type YES (in capitals) to continue: ")
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	return answer == "YES", nil
}

// SelectDisk lists the detected disks and returns the chosen one.
func (p *Prompter) SelectDisk(disks []*block.Disk) (*block.Disk, error) {
	if len(disks) == 0 {
		return nil, fmt.Errorf("no disks detected")
	}
	fmt.Fprintln(p.out, "\nAvailable disks:")
	for i, d := range disks {
		size := units.HumanSize(float64(d.Size))
		model := d.Model
		if model == "" {
			model = "unknown model"
		}
		fmt.Fprintf(p.out, "  %d) %-16s %8s  %s\n", i+1, d.Path, size, model)
	}
	for {
		answer, err := p.Ask("Select a disk", "")
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(answer)
		if err == nil && idx >= 1 && idx <= len(disks) {
			return disks[idx-1], nil
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(disks))
	}
}

// AskPassphrase reads a passphrase twice without echo and verifies both
// entries match. It keeps asking until a non-empty matching pair is given.
func (p *Prompter) AskPassphrase(prompt string) (string, error) {
	read := p.readPassword
	if read == nil {
		read = termReadPassword
	}
	for {
		fmt.Fprintf(p.out, "%s: ", prompt)
		first, err := read(int(os.Stdin.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if len(first) == 0 {
			fmt.Fprintln(p.out, "Passphrase must not be empty.")
			continue
		}
		fmt.Fprint(p.out, "Confirm passphrase: ")
		second, err := read(int(os.Stdin.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) == string(second) {
			return string(first), nil
		}
		fmt.Fprintln(p.out, "Passphrases do not match, try again.")
	}
}

// termReadPassword disables echo on the terminal while reading a line.
func termReadPassword(fd int) ([]byte, error) {
	old, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	termios := *old
	termios.Lflag &^= unix.ECHO
	termios.Lflag |= unix.ICANON | unix.ISIG
	if err = unix.IoctlSetTermios(fd, unix.TCSETS, &termios); err != nil {
		return nil, err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, old)
	}()

	var line []byte
	var buf [1]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n == 0 || buf[0] == '\n' {
			break
		}
		if err != nil {
			return nil, err
		}
		line = append(line, buf[0])
	}
	return line, nil
}
