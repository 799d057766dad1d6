// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProjectRun pairs a project-scoped Orchestrator with the task ids it
// should drive to completion, one at a time, in its own cooperative
// loop.
type ProjectRun struct {
	ProjectID string
	Orchestrator *Orchestrator
	TaskIDs      []string
}

// RunPool executes each ProjectRun's tasks sequentially within a single
// goroutine (the "single cooperative task per project" rule of
// spec.md 5), while multiple projects run concurrently. Every project's
// goroutine starts up front; the first hard error cancels the shared
// context, each project checks it before starting its next task, and a
// task already running receives the cancelled context.
func RunPool(ctx context.Context, runs []ProjectRun) (map[string][]TaskResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make(map[string][]TaskResult, len(runs))
	var mu sync.Mutex

	for _, run := range runs {
		run := run
		g.Go(func() error {
			out := make([]TaskResult, 0, len(run.TaskIDs))
			for _, taskID := range run.TaskIDs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				res, err := run.Orchestrator.ExecuteTask(gctx, taskID)
				if err != nil {
					return err
				}
				out = append(out, res)
				if res.Status != StatusCompleted {
					// A project's loop stops advancing past a task
					// that did not complete (blocked, paused,
					// escalated, waiting, failed, cancelled); the
					// caller inspects TaskResult to decide what's next.
					break
				}
			}
			mu.Lock()
			results[run.ProjectID] = out
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
