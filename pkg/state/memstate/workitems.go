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

package memstate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) createWorkItem(variant state.Variant, in state.NewWorkItem) (*state.WorkItem, error) {
	if err := checkAcyclic(s.workItems, "", variant, in.Dependencies); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	w := &state.WorkItem{
		ID:               newID(),
		ProjectID:        in.ProjectID,
		Variant:          variant,
		Title:            in.Title,
		Description:      in.Description,
		Priority:         in.Priority,
		Status:           state.StatusPending,
		Dependencies:     append([]string(nil), in.Dependencies...),
		EpicID:           in.EpicID,
		StoryID:          in.StoryID,
		ParentTaskID:     in.ParentTaskID,
		MilestoneEpicIDs: append([]string(nil), in.MilestoneEpicIDs...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.workItems[w.ID] = w
	cp := *w
	return &cp, nil
}

func (s *Store) CreateEpic(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkItem(state.VariantEpic, in)
}

func (s *Store) CreateStory(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkItem(state.VariantStory, in)
}

func (s *Store) CreateTask(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkItem(state.VariantTask, in)
}

func (s *Store) CreateSubtask(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkItem(state.VariantSubtask, in)
}

func (s *Store) CreateMilestone(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWorkItem(state.VariantMilestone, in)
}

func (s *Store) GetWorkItem(ctx context.Context, id string) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workItems[id]
	if !ok {
		return nil, errs.StorageFault("get_work_item", errNotFound(id))
	}
	cp := *w
	return &cp, nil
}

func (s *Store) ListWorkItems(ctx context.Context, opts state.ListOptions) ([]*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*state.WorkItem, 0)
	for _, w := range s.workItems {
		if opts.ProjectID != "" && w.ProjectID != opts.ProjectID {
			continue
		}
		if opts.Variant != "" && w.Variant != opts.Variant {
			continue
		}
		if w.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateWorkItem(ctx context.Context, id string, updates state.WorkItemUpdate) (*state.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workItems[id]
	if !ok {
		return nil, errs.StorageFault("update_work_item", errNotFound(id))
	}

	if updates.Status != nil && *updates.Status == state.StatusRunning {
		for _, depID := range w.Dependencies {
			dep, ok := s.workItems[depID]
			if !ok || dep.Status != state.StatusCompleted {
				return nil, errs.ValidationError("update_work_item", "status",
					fmt.Errorf("cannot move %q to RUNNING: dependency %q is not COMPLETED", id, depID))
			}
		}
	}
	if updates.Dependencies != nil {
		if err := checkAcyclic(s.workItems, id, w.Variant, *updates.Dependencies); err != nil {
			return nil, err
		}
		w.Dependencies = append([]string(nil), (*updates.Dependencies)...)
	}

	if updates.Title != nil {
		w.Title = *updates.Title
	}
	if updates.Description != nil {
		w.Description = *updates.Description
	}
	if updates.Priority != nil {
		w.Priority = *updates.Priority
	}
	if updates.Status != nil {
		w.Status = *updates.Status
	}
	if updates.EpicID != nil {
		w.EpicID = updates.EpicID
	}
	if updates.StoryID != nil {
		w.StoryID = updates.StoryID
	}
	if updates.ParentTaskID != nil {
		w.ParentTaskID = updates.ParentTaskID
	}
	w.UpdatedAt = time.Now().UTC()

	cp := *w
	return &cp, nil
}

func (s *Store) DeleteWorkItem(ctx context.Context, id string, soft bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workItems[id]
	if !ok {
		return errs.StorageFault("delete_work_item", errNotFound(id))
	}
	if soft {
		w.IsDeleted = true
		w.UpdatedAt = time.Now().UTC()
		return nil
	}
	delete(s.workItems, id)
	return nil
}

// DeleteAllOf cascades subtasks -> tasks -> stories -> epics within the
// store's single lock, which stands in for a database transaction: if
// any tier fails the lock is still released but the counts accumulated
// so far are returned alongside the error so callers see exactly what
// was removed before the failure (memstate never partially fails a
// tier, since deletes here cannot error once the id set is known, but
// the shape matches sqlstate's real transactional rollback contract).
func (s *Store) DeleteAllOf(ctx context.Context, projectID string, variant state.Variant) (state.DeleteCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts state.DeleteCounts
	order := []state.Variant{state.VariantSubtask, state.VariantTask, state.VariantStory, state.VariantEpic}
	for _, v := range order {
		if variant != "" && variant != v {
			continue
		}
		for _, w := range s.workItems {
			if w.ProjectID != projectID || w.Variant != v || w.IsDeleted {
				continue
			}
			w.IsDeleted = true
			w.UpdatedAt = time.Now().UTC()
			switch v {
			case state.VariantSubtask:
				counts.Subtasks++
			case state.VariantTask:
				counts.Tasks++
			case state.VariantStory:
				counts.Stories++
			case state.VariantEpic:
				counts.Epics++
			}
		}
	}
	return counts, nil
}

// checkAcyclic verifies that adding deps as the dependency set of id
// (variant-scoped; id == "" means "not yet created") introduces no
// cycle in the dependency graph restricted to that variant.
func checkAcyclic(items map[string]*state.WorkItem, id string, variant state.Variant, deps []string) error {
	visited := make(map[string]bool)
	var visit func(node string) error
	visit = func(node string) error {
		if node == id {
			return errs.ValidationError("dependency_graph", "dependencies",
				fmt.Errorf("cycle detected through %q", node))
		}
		if visited[node] {
			return nil
		}
		visited[node] = true
		w, ok := items[node]
		if !ok || w.Variant != variant {
			return nil
		}
		for _, next := range w.Dependencies {
			if err := visit(next); err != nil {
				return err
			}
		}
		return nil
	}
	for _, d := range deps {
		if d == id {
			return errs.ValidationError("dependency_graph", "dependencies",
				fmt.Errorf("item cannot depend on itself"))
		}
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}
