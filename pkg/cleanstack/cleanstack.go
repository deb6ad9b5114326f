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

package cleanstack

import (
	"errors"
)

type cleanJob struct {
	task        func() error
	errorOnly   bool
	successOnly bool
}

// CleanStack is a LIFO stack of cleanup tasks, run in reverse push order
// once the guarded operation finishes.
type CleanStack struct {
	jobs []*cleanJob
}

func NewCleanStack() *CleanStack {
	return &CleanStack{}
}

// Push adds a task run on every outcome.
func (c *CleanStack) Push(task func() error) {
	c.jobs = append(c.jobs, &cleanJob{task: task})
}

// PushErrorOnly adds a task run only when the guarded operation failed.
func (c *CleanStack) PushErrorOnly(task func() error) {
	c.jobs = append(c.jobs, &cleanJob{task: task, errorOnly: true})
}

// PushSuccessOnly adds a task run only when the guarded operation
// succeeded.
func (c *CleanStack) PushSuccessOnly(task func() error) {
	c.jobs = append(c.jobs, &cleanJob{task: task, successOnly: true})
}

// Cleanup runs the stacked tasks in reverse order and joins any cleanup
// errors to the passed in operation error.
func (c *CleanStack) Cleanup(err error) error {
	errs := []error{err}
	for i := len(c.jobs) - 1; i >= 0; i-- {
		job := c.jobs[i]
		if job.errorOnly && err == nil {
			continue
		}
		if job.successOnly && err != nil {
			continue
		}
		errs = append(errs, job.task())
	}
	c.jobs = nil
	return errors.Join(errs...)
}
