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
	"database/sql"
	"strings"
	"time"

	"github.com/kadirpekel/orchkit/pkg/state"
)

func joinIDs(ids []string) string { return strings.Join(ids, ",") }

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type projectRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	WorkingDirectory string    `db:"working_directory"`
	Status           string    `db:"status"`
	IsDeleted        bool      `db:"is_deleted"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r projectRow) toDomain() *state.Project {
	return &state.Project{
		ID:               r.ID,
		Name:             r.Name,
		WorkingDirectory: r.WorkingDirectory,
		Status:           state.ProjectStatus(r.Status),
		IsDeleted:        r.IsDeleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type workItemRow struct {
	ID               string         `db:"id"`
	ProjectID        string         `db:"project_id"`
	Variant          string         `db:"variant"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Priority         int            `db:"priority"`
	Status           string         `db:"status"`
	Dependencies     string         `db:"dependencies"`
	EpicID           sql.NullString `db:"epic_id"`
	StoryID          sql.NullString `db:"story_id"`
	ParentTaskID     sql.NullString `db:"parent_task_id"`
	MilestoneEpicIDs string         `db:"milestone_epic_ids"`
	IsDeleted        bool           `db:"is_deleted"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func nullableStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func (r workItemRow) toDomain() *state.WorkItem {
	return &state.WorkItem{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Variant:          state.Variant(r.Variant),
		Title:            r.Title,
		Description:      r.Description,
		Priority:         r.Priority,
		Status:           state.WorkItemStatus(r.Status),
		Dependencies:     splitIDs(r.Dependencies),
		EpicID:           strPtr(r.EpicID),
		StoryID:          strPtr(r.StoryID),
		ParentTaskID:     strPtr(r.ParentTaskID),
		MilestoneEpicIDs: splitIDs(r.MilestoneEpicIDs),
		IsDeleted:        r.IsDeleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type sessionRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	MilestoneID sql.NullString `db:"milestone_id"`
	StartedAt   time.Time      `db:"started_at"`
	EndedAt     sql.NullTime   `db:"ended_at"`
	Status      string         `db:"status"`
	TotalTokens int64          `db:"total_tokens"`
	TotalTurns  int            `db:"total_turns"`
	Summary     sql.NullString `db:"summary"`
}

func (r sessionRow) toDomain() *state.Session {
	sess := &state.Session{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		MilestoneID: strPtr(r.MilestoneID),
		StartedAt:   r.StartedAt,
		Status:      state.SessionStatus(r.Status),
		TotalTokens: r.TotalTokens,
		TotalTurns:  r.TotalTurns,
		Summary:     strPtr(r.Summary),
	}
	if r.EndedAt.Valid {
		sess.EndedAt = &r.EndedAt.Time
	}
	return sess
}

type breakpointRow struct {
	ID          string         `db:"id"`
	TaskID      string         `db:"task_id"`
	Reason      string         `db:"reason"`
	TriggeredAt time.Time      `db:"triggered_at"`
	ResolvedAt  sql.NullTime   `db:"resolved_at"`
	Resolution  sql.NullString `db:"resolution"`
}

func (r breakpointRow) toDomain() *state.Breakpoint {
	bp := &state.Breakpoint{
		ID:          r.ID,
		TaskID:      r.TaskID,
		Reason:      state.BreakpointReason(r.Reason),
		TriggeredAt: r.TriggeredAt,
	}
	if r.ResolvedAt.Valid {
		bp.ResolvedAt = &r.ResolvedAt.Time
	}
	if r.Resolution.Valid {
		res := state.Resolution(r.Resolution.String)
		bp.Resolution = &res
	}
	return bp
}

type checkpointRow struct {
	ID                string    `db:"id"`
	SessionID         string    `db:"session_id"`
	CreatedAt         time.Time `db:"created_at"`
	Trigger           string    `db:"trigger"`
	Artifact          []byte    `db:"artifact"`
	LastInteractionID string    `db:"last_interaction_id"`
}

func (r checkpointRow) toDomain() *state.Checkpoint {
	return &state.Checkpoint{
		ID:                r.ID,
		SessionID:         r.SessionID,
		CreatedAt:         r.CreatedAt,
		Trigger:           state.CheckpointTrigger(r.Trigger),
		Artifact:          r.Artifact,
		LastInteractionID: r.LastInteractionID,
	}
}

type interactionRow struct {
	ID         string    `db:"id"`
	ProjectID  string    `db:"project_id"`
	TaskID     string    `db:"task_id"`
	SessionID  string    `db:"session_id"`
	Iteration  int       `db:"iteration"`
	Prompt     string    `db:"prompt"`
	Response   string    `db:"response"`
	TS         time.Time `db:"ts"`
	TurnsUsed  int       `db:"turns_used"`
	DurationMS int64     `db:"duration_ms"`
	Quality    int       `db:"quality"`
	Confidence int       `db:"confidence"`
	Decision   string    `db:"decision"`
}

func (r interactionRow) toDomain() *state.Interaction {
	return &state.Interaction{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		TaskID:    r.TaskID,
		SessionID: r.SessionID,
		Iteration: r.Iteration,
		Prompt:    r.Prompt,
		Response:  r.Response,
		Timestamp: r.TS,
		Metadata: state.InteractionMetadata{
			TurnsUsed:  r.TurnsUsed,
			DurationMS: r.DurationMS,
			Quality:    r.Quality,
			Confidence: r.Confidence,
			Decision:   r.Decision,
		},
	}
}
