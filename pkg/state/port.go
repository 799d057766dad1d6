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

package state

import (
	"context"
	"fmt"
	"strings"
)

// WorkItemUpdate whitelists the fields update_work_item may change.
// Unknown fields passed around this type are simply never represented;
// nil pointers mean "leave unchanged", matching "optional fields that
// are absent must be omitted entirely" from the NL pipeline contract.
type WorkItemUpdate struct {
	Title        *string
	Description  *string
	Priority     *int
	Status       *WorkItemStatus
	Dependencies *[]string
	EpicID       *string
	StoryID      *string
	ParentTaskID *string
}

// NewWorkItem is the input shape for create_epic/create_story/
// create_task/create_subtask/create_milestone.
type NewWorkItem struct {
	ProjectID        string
	Title            string
	Description      string
	Priority         int
	Dependencies     []string
	EpicID           *string
	StoryID          *string
	ParentTaskID     *string
	MilestoneEpicIDs []string
}

// ListOptions filters work-item listings.
type ListOptions struct {
	ProjectID      string
	Variant        Variant
	IncludeDeleted bool
}

// DeleteCounts reports how many rows of each variant a cascading delete
// removed, in the order they were removed (subtasks, tasks, stories,
// epics). A partial failure returns the counts accumulated before the
// failing tier.
type DeleteCounts struct {
	Subtasks int
	Tasks    int
	Stories  int
	Epics    int
}

// Total sums every tier.
func (d DeleteCounts) Total() int {
	return d.Subtasks + d.Tasks + d.Stories + d.Epics
}

// Describe renders a tier-ordered, singular/plural-aware breakdown
// (e.g. "1 task, 1 story, 1 epic"), omitting tiers with a zero count.
// It returns "nothing" when every tier is zero.
func (d DeleteCounts) Describe() string {
	var parts []string
	add := func(n int, singular, plural string) {
		if n == 0 {
			return
		}
		noun := singular
		if n != 1 {
			noun = plural
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, noun))
	}
	add(d.Subtasks, "subtask", "subtasks")
	add(d.Tasks, "task", "tasks")
	add(d.Stories, "story", "stories")
	add(d.Epics, "epic", "epics")
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

// ProjectStore is the project lifecycle slice of StatePort.
type ProjectStore interface {
	CreateProject(ctx context.Context, name, workingDirectory string) (*Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, includeDeleted bool) ([]*Project, error)
	UpdateProject(ctx context.Context, id string, updates ProjectUpdate) (*Project, error)
	SoftDeleteProject(ctx context.Context, id string) error
}

// ProjectUpdate whitelists the fields update_project may change.
type ProjectUpdate struct {
	Name   *string
	Status *ProjectStatus
}

// WorkItemStore is the work-item hierarchy slice of StatePort.
type WorkItemStore interface {
	CreateEpic(ctx context.Context, in NewWorkItem) (*WorkItem, error)
	CreateStory(ctx context.Context, in NewWorkItem) (*WorkItem, error)
	CreateTask(ctx context.Context, in NewWorkItem) (*WorkItem, error)
	CreateSubtask(ctx context.Context, in NewWorkItem) (*WorkItem, error)
	CreateMilestone(ctx context.Context, in NewWorkItem) (*WorkItem, error)

	GetWorkItem(ctx context.Context, id string) (*WorkItem, error)
	ListWorkItems(ctx context.Context, opts ListOptions) ([]*WorkItem, error)
	UpdateWorkItem(ctx context.Context, id string, updates WorkItemUpdate) (*WorkItem, error)
	DeleteWorkItem(ctx context.Context, id string, soft bool) error

	// DeleteAllOf cascades subtasks -> tasks -> stories -> epics within
	// a single transaction, returning the per-tier counts removed
	// before any failure. variant == "" targets every variant.
	DeleteAllOf(ctx context.Context, projectID string, variant Variant) (DeleteCounts, error)
}

// SessionStore is the session lifecycle slice of StatePort.
type SessionStore interface {
	CreateSessionRecord(ctx context.Context, projectID string, milestoneID *string) (*Session, error)
	CompleteSessionRecord(ctx context.Context, sessionID string) error
	SaveSessionSummary(ctx context.Context, sessionID, summary string) error
	ListSessionsForMilestone(ctx context.Context, projectID string, milestoneID *string) ([]*Session, error)
	GetActiveSession(ctx context.Context, projectID string, milestoneID *string) (*Session, error)
	MarkRefreshed(ctx context.Context, sessionID, summary string) error
}

// LedgerStore is the token-ledger slice of StatePort.
type LedgerStore interface {
	AppendInteraction(ctx context.Context, in Interaction) (*Interaction, error)
	RecordTokenUsage(ctx context.Context, entry TokenLedgerEntry) error
	GetSessionTokenUsage(ctx context.Context, sessionID string) (int64, error)
	ListInteractions(ctx context.Context, taskID string) ([]*Interaction, error)
}

// BreakpointStore is the breakpoint slice of StatePort.
type BreakpointStore interface {
	CreateBreakpoint(ctx context.Context, taskID string, reason BreakpointReason) (*Breakpoint, error)
	ResolveBreakpoint(ctx context.Context, id string, resolution Resolution) (*Breakpoint, error)
	GetUnresolvedBreakpoint(ctx context.Context, taskID string) (*Breakpoint, error)
}

// CheckpointStore is the checkpoint registry slice of StatePort.
type CheckpointStore interface {
	CreateCheckpoint(ctx context.Context, cp Checkpoint) (*Checkpoint, error)
	GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error)
	LatestCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error)
}

// Port is the single source of truth. Every mutation passes through it
// inside a transaction; partial failure rolls back and leaves no
// partial rows visible to any reader. Implementations serialize writes
// internally (single writer, many readers); callers need not lock.
type Port interface {
	ProjectStore
	WorkItemStore
	SessionStore
	LedgerStore
	BreakpointStore
	CheckpointStore

	// Close releases underlying resources (connections, file handles).
	// Never re-entrant: Close must not be called concurrently with any
	// other method, and the Port must not be used afterward.
	Close(ctx context.Context) error
}
