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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) CreateSessionRecord(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	var created *state.Session
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT * FROM sessions WHERE project_id = ? AND status = ?`
		args := []any{projectID, string(state.SessionActive)}
		if milestoneID != nil {
			query += ` AND milestone_id = ?`
			args = append(args, *milestoneID)
		} else {
			query += ` AND milestone_id IS NULL`
		}
		var existing []sessionRow
		if err := tx.SelectContext(ctx, &existing, tx.Rebind(query), args...); err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("an ACTIVE session already exists for this project/milestone")
		}

		row := sessionRow{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			MilestoneID: nullableStr(milestoneID),
			StartedAt:   time.Now().UTC(),
			Status:      string(state.SessionActive),
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sessions (id, project_id, milestone_id, started_at, status, total_tokens, total_turns)
			VALUES (:id, :project_id, :milestone_id, :started_at, :status, 0, 0)`, row)
		if err != nil {
			return err
		}
		created = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, errs.StorageFault("create_session_record", err)
	}
	return created, nil
}

func (s *Store) CompleteSessionRecord(ctx context.Context, sessionID string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
			string(state.SessionCompleted), time.Now().UTC(), sessionID)
		return err
	})
	if err != nil {
		return errs.StorageFault("complete_session_record", err)
	}
	return nil
}

func (s *Store) SaveSessionSummary(ctx context.Context, sessionID, summary string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET summary = ? WHERE id = ?`, summary, sessionID)
		return err
	})
	if err != nil {
		return errs.StorageFault("save_session_summary", err)
	}
	return nil
}

func (s *Store) ListSessionsForMilestone(ctx context.Context, projectID string, milestoneID *string) ([]*state.Session, error) {
	query := `SELECT * FROM sessions WHERE project_id = ?`
	args := []any{projectID}
	if milestoneID != nil {
		query += ` AND milestone_id = ?`
		args = append(args, *milestoneID)
	} else {
		query += ` AND milestone_id IS NULL`
	}
	query += ` ORDER BY started_at ASC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errs.StorageFault("list_sessions_for_milestone", err)
	}
	out := make([]*state.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetActiveSession(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	query := `SELECT * FROM sessions WHERE project_id = ? AND status = ?`
	args := []any{projectID, string(state.SessionActive)}
	if milestoneID != nil {
		query += ` AND milestone_id = ?`
		args = append(args, *milestoneID)
	} else {
		query += ` AND milestone_id IS NULL`
	}

	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.StorageFault("get_active_session", err)
	}
	return row.toDomain(), nil
}

func (s *Store) MarkRefreshed(ctx context.Context, sessionID, summary string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET status = ?, summary = ? WHERE id = ?`,
			string(state.SessionRefreshed), summary, sessionID)
		return err
	})
	if err != nil {
		return errs.StorageFault("mark_refreshed", err)
	}
	return nil
}
