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

package sqlstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) createWorkItem(ctx context.Context, variant state.Variant, in state.NewWorkItem) (*state.WorkItem, error) {
	var created *state.WorkItem
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkAcyclicTx(ctx, tx, "", variant, in.Dependencies); err != nil {
			return err
		}
		now := time.Now().UTC()
		row := workItemRow{
			ID:               uuid.NewString(),
			ProjectID:        in.ProjectID,
			Variant:          string(variant),
			Title:            in.Title,
			Description:      in.Description,
			Priority:         in.Priority,
			Status:           string(state.StatusPending),
			Dependencies:     joinIDs(in.Dependencies),
			EpicID:           nullableStr(in.EpicID),
			StoryID:          nullableStr(in.StoryID),
			ParentTaskID:     nullableStr(in.ParentTaskID),
			MilestoneEpicIDs: joinIDs(in.MilestoneEpicIDs),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO work_items (id, project_id, variant, title, description, priority, status,
				dependencies, epic_id, story_id, parent_task_id, milestone_epic_ids, is_deleted, created_at, updated_at)
			VALUES (:id, :project_id, :variant, :title, :description, :priority, :status,
				:dependencies, :epic_id, :story_id, :parent_task_id, :milestone_epic_ids, false, :created_at, :updated_at)`, row)
		if err != nil {
			return err
		}
		created = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, errs.StorageFault(fmt.Sprintf("create_%s", variant), err)
	}
	return created, nil
}

func (s *Store) CreateEpic(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	return s.createWorkItem(ctx, state.VariantEpic, in)
}

func (s *Store) CreateStory(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	return s.createWorkItem(ctx, state.VariantStory, in)
}

func (s *Store) CreateTask(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	return s.createWorkItem(ctx, state.VariantTask, in)
}

func (s *Store) CreateSubtask(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	return s.createWorkItem(ctx, state.VariantSubtask, in)
}

func (s *Store) CreateMilestone(ctx context.Context, in state.NewWorkItem) (*state.WorkItem, error) {
	return s.createWorkItem(ctx, state.VariantMilestone, in)
}

func (s *Store) GetWorkItem(ctx context.Context, id string) (*state.WorkItem, error) {
	var row workItemRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM work_items WHERE id = ?`, id); err != nil {
		return nil, errs.StorageFault("get_work_item", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListWorkItems(ctx context.Context, opts state.ListOptions) ([]*state.WorkItem, error) {
	query := `SELECT * FROM work_items WHERE project_id = ?`
	args := []any{opts.ProjectID}
	if opts.Variant != "" {
		query += ` AND variant = ?`
		args = append(args, string(opts.Variant))
	}
	if !opts.IncludeDeleted {
		query += ` AND is_deleted = false`
	}
	query += ` ORDER BY created_at ASC`

	var rows []workItemRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errs.StorageFault("list_work_items", err)
	}
	out := make([]*state.WorkItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateWorkItem(ctx context.Context, id string, updates state.WorkItemUpdate) (*state.WorkItem, error) {
	var result *state.WorkItem
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row workItemRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM work_items WHERE id = ?`, id); err != nil {
			return err
		}

		if updates.Status != nil && *updates.Status == state.StatusRunning {
			for _, depID := range splitIDs(row.Dependencies) {
				var dep workItemRow
				if err := tx.GetContext(ctx, &dep, `SELECT * FROM work_items WHERE id = ?`, depID); err != nil {
					return errs.ValidationError("update_work_item", "status",
						fmt.Errorf("dependency %q not found", depID))
				}
				if dep.Status != string(state.StatusCompleted) {
					return errs.ValidationError("update_work_item", "status",
						fmt.Errorf("cannot move %q to RUNNING: dependency %q is not COMPLETED", id, depID))
				}
			}
		}
		if updates.Dependencies != nil {
			if err := checkAcyclicTx(ctx, tx, id, state.Variant(row.Variant), *updates.Dependencies); err != nil {
				return err
			}
			row.Dependencies = joinIDs(*updates.Dependencies)
		}
		if updates.Title != nil {
			row.Title = *updates.Title
		}
		if updates.Description != nil {
			row.Description = *updates.Description
		}
		if updates.Priority != nil {
			row.Priority = *updates.Priority
		}
		if updates.Status != nil {
			row.Status = string(*updates.Status)
		}
		if updates.EpicID != nil {
			row.EpicID = nullableStr(updates.EpicID)
		}
		if updates.StoryID != nil {
			row.StoryID = nullableStr(updates.StoryID)
		}
		if updates.ParentTaskID != nil {
			row.ParentTaskID = nullableStr(updates.ParentTaskID)
		}
		row.UpdatedAt = time.Now().UTC()

		_, err := tx.NamedExecContext(ctx, `
			UPDATE work_items SET title = :title, description = :description, priority = :priority,
				status = :status, dependencies = :dependencies, epic_id = :epic_id, story_id = :story_id,
				parent_task_id = :parent_task_id, updated_at = :updated_at
			WHERE id = :id`, row)
		if err != nil {
			return err
		}
		result = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteWorkItem(ctx context.Context, id string, soft bool) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if soft {
			_, err = tx.ExecContext(ctx, `UPDATE work_items SET is_deleted = true, updated_at = ? WHERE id = ?`,
				time.Now().UTC(), id)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?`, id)
		}
		return err
	})
	if err != nil {
		return errs.StorageFault("delete_work_item", err)
	}
	return nil
}

// DeleteAllOf cascades subtasks -> tasks -> stories -> epics inside a
// single transaction. Each tier is counted, then soft-deleted, before
// moving to the next; a failure rolls back the whole transaction, so no
// tier is ever partially visible (P4).
func (s *Store) DeleteAllOf(ctx context.Context, projectID string, variant state.Variant) (state.DeleteCounts, error) {
	var counts state.DeleteCounts
	order := []state.Variant{state.VariantSubtask, state.VariantTask, state.VariantStory, state.VariantEpic}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for _, v := range order {
			if variant != "" && variant != v {
				continue
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE work_items SET is_deleted = true, updated_at = ?
				WHERE project_id = ? AND variant = ? AND is_deleted = false`, now, projectID, string(v))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			switch v {
			case state.VariantSubtask:
				counts.Subtasks = int(n)
			case state.VariantTask:
				counts.Tasks = int(n)
			case state.VariantStory:
				counts.Stories = int(n)
			case state.VariantEpic:
				counts.Epics = int(n)
			}
		}
		return nil
	})
	if err != nil {
		return counts, errs.StorageFault("delete_all_of", err)
	}
	return counts, nil
}

// checkAcyclicTx mirrors memstate's in-memory cycle check but reads
// through the open transaction so a concurrent writer cannot observe a
// half-updated graph.
func checkAcyclicTx(ctx context.Context, tx *sqlx.Tx, id string, variant state.Variant, deps []string) error {
	cache := make(map[string]*workItemRow)
	load := func(nodeID string) (*workItemRow, error) {
		if row, ok := cache[nodeID]; ok {
			return row, nil
		}
		var row workItemRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM work_items WHERE id = ?`, nodeID); err != nil {
			cache[nodeID] = nil
			return nil, nil
		}
		cache[nodeID] = &row
		return &row, nil
	}

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
		row, err := load(node)
		if err != nil {
			return err
		}
		if row == nil || state.Variant(row.Variant) != variant {
			return nil
		}
		for _, next := range splitIDs(row.Dependencies) {
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
