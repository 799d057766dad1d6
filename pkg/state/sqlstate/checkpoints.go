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

func (s *Store) CreateCheckpoint(ctx context.Context, cp state.Checkpoint) (*state.Checkpoint, error) {
	row := checkpointRow{
		ID:                uuid.NewString(),
		SessionID:         cp.SessionID,
		CreatedAt:         time.Now().UTC(),
		Trigger:           string(cp.Trigger),
		Artifact:          cp.Artifact,
		LastInteractionID: cp.LastInteractionID,
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO checkpoints (id, session_id, created_at, trigger, artifact, last_interaction_id)
			VALUES (:id, :session_id, :created_at, :trigger, :artifact, :last_interaction_id)`, row)
		return err
	})
	if err != nil {
		return nil, errs.StorageFault("create_checkpoint", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetCheckpoint(ctx context.Context, id string) (*state.Checkpoint, error) {
	var row checkpointRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM checkpoints WHERE id = ?`, id); err != nil {
		return nil, errs.StorageFault("get_checkpoint", err)
	}
	return row.toDomain(), nil
}

func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (*state.Checkpoint, error) {
	var row checkpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM checkpoints WHERE session_id = ? ORDER BY created_at DESC LIMIT 1`, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.StorageFault("latest_checkpoint", err)
	}
	return row.toDomain(), nil
}
