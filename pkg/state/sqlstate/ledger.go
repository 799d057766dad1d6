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

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) AppendInteraction(ctx context.Context, in state.Interaction) (*state.Interaction, error) {
	row := interactionRow{
		ID:         uuid.NewString(),
		ProjectID:  in.ProjectID,
		TaskID:     in.TaskID,
		SessionID:  in.SessionID,
		Iteration:  in.Iteration,
		Prompt:     in.Prompt,
		Response:   in.Response,
		TS:         in.Timestamp,
		TurnsUsed:  in.Metadata.TurnsUsed,
		DurationMS: in.Metadata.DurationMS,
		Quality:    in.Metadata.Quality,
		Confidence: in.Metadata.Confidence,
		Decision:   in.Metadata.Decision,
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO interactions (id, project_id, task_id, session_id, iteration, prompt, response, ts,
				turns_used, duration_ms, quality, confidence, decision)
			VALUES (:id, :project_id, :task_id, :session_id, :iteration, :prompt, :response, :ts,
				:turns_used, :duration_ms, :quality, :confidence, :decision)`, row)
		return err
	})
	if err != nil {
		return nil, errs.StorageFault("append_interaction", err)
	}
	return row.toDomain(), nil
}

// RecordTokenUsage appends a ledger row and updates the owning session's
// rollup counters in the same transaction, so a concurrent
// GetSessionTokenUsage call can never observe the append without the
// rollup (P1).
func (s *Store) RecordTokenUsage(ctx context.Context, entry state.TokenLedgerEntry) error {
	row := struct {
		ID                  string `db:"id"`
		SessionID           string `db:"session_id"`
		TaskID              string `db:"task_id"`
		TS                  any    `db:"ts"`
		InputTokens         int64  `db:"input_tokens"`
		CacheCreationTokens int64  `db:"cache_creation_tokens"`
		CacheReadTokens     int64  `db:"cache_read_tokens"`
		OutputTokens        int64  `db:"output_tokens"`
		TotalTokens         int64  `db:"total_tokens"`
	}{
		ID:                  uuid.NewString(),
		SessionID:           entry.SessionID,
		TaskID:              entry.TaskID,
		TS:                  entry.Timestamp,
		InputTokens:         entry.InputTokens,
		CacheCreationTokens: entry.CacheCreationTokens,
		CacheReadTokens:     entry.CacheReadTokens,
		OutputTokens:        entry.OutputTokens,
		TotalTokens:         entry.TotalTokens,
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO token_ledger (id, session_id, task_id, ts, input_tokens, cache_creation_tokens,
				cache_read_tokens, output_tokens, total_tokens)
			VALUES (:id, :session_id, :task_id, :ts, :input_tokens, :cache_creation_tokens,
				:cache_read_tokens, :output_tokens, :total_tokens)`, row); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE sessions SET total_tokens = total_tokens + ?, total_turns = total_turns + 1 WHERE id = ?`,
			entry.TotalTokens, entry.SessionID)
		return err
	})
	if err != nil {
		return errs.StorageFault("record_token_usage", err)
	}
	return nil
}

func (s *Store) GetSessionTokenUsage(ctx context.Context, sessionID string) (int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM token_ledger WHERE session_id = ?`, sessionID); err != nil {
		return 0, errs.StorageFault("get_session_token_usage", err)
	}
	return total, nil
}

func (s *Store) ListInteractions(ctx context.Context, taskID string) ([]*state.Interaction, error) {
	var rows []interactionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM interactions WHERE task_id = ? ORDER BY iteration ASC`, taskID); err != nil {
		return nil, errs.StorageFault("list_interactions", err)
	}
	out := make([]*state.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
