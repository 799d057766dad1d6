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
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) CreateProject(ctx context.Context, name, workingDirectory string) (*state.Project, error) {
	row := projectRow{
		ID:               uuid.NewString(),
		Name:             name,
		WorkingDirectory: workingDirectory,
		Status:           string(state.ProjectActive),
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO projects (id, name, working_directory, status, is_deleted, created_at, updated_at)
			VALUES (:id, :name, :working_directory, :status, false, :created_at, :updated_at)`, row)
		return err
	})
	if err != nil {
		return nil, errs.StorageFault("create_project", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*state.Project, error) {
	var row projectRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = ?`, id); err != nil {
		return nil, errs.StorageFault("get_project", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListProjects(ctx context.Context, includeDeleted bool) ([]*state.Project, error) {
	query := `SELECT * FROM projects`
	if !includeDeleted {
		query += ` WHERE is_deleted = false`
	}
	query += ` ORDER BY created_at ASC`

	var rows []projectRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errs.StorageFault("list_projects", err)
	}
	out := make([]*state.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, updates state.ProjectUpdate) (*state.Project, error) {
	var result *state.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row projectRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = ?`, id); err != nil {
			return err
		}
		if updates.Name != nil {
			row.Name = *updates.Name
		}
		if updates.Status != nil {
			row.Status = string(*updates.Status)
		}
		row.UpdatedAt = time.Now().UTC()
		_, err := tx.NamedExecContext(ctx, `
			UPDATE projects SET name = :name, status = :status, updated_at = :updated_at
			WHERE id = :id`, row)
		if err != nil {
			return err
		}
		result = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, errs.StorageFault("update_project", err)
	}
	return result, nil
}

func (s *Store) SoftDeleteProject(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE projects SET is_deleted = true, updated_at = ? WHERE id = ?`,
			time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return errs.StorageFault("soft_delete_project", err)
	}
	return nil
}
