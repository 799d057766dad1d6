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
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) CreateBreakpoint(ctx context.Context, taskID string, reason state.BreakpointReason) (*state.Breakpoint, error) {
	row := breakpointRow{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Reason:      string(reason),
		TriggeredAt: time.Now().UTC(),
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO breakpoints (id, task_id, reason, triggered_at)
			VALUES (:id, :task_id, :reason, :triggered_at)`, row)
		return err
	})
	if err != nil {
		return nil, errs.StorageFault("create_breakpoint", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ResolveBreakpoint(ctx context.Context, id string, resolution state.Resolution) (*state.Breakpoint, error) {
	var result *state.Breakpoint
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE breakpoints SET resolved_at = ?, resolution = ? WHERE id = ?`,
			now, string(resolution), id); err != nil {
			return err
		}
		var row breakpointRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM breakpoints WHERE id = ?`, id); err != nil {
			return err
		}
		result = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, errs.StorageFault("resolve_breakpoint", err)
	}
	return result, nil
}

func (s *Store) GetUnresolvedBreakpoint(ctx context.Context, taskID string) (*state.Breakpoint, error) {
	var row breakpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM breakpoints WHERE task_id = ? AND resolved_at IS NULL LIMIT 1`, taskID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.StorageFault("get_unresolved_breakpoint", err)
	}
	return row.toDomain(), nil
}
