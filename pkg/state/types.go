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

// Package state declares the StatePort contract: the single source of
// truth for projects, work items, sessions, interactions, breakpoints,
// and checkpoints. Every mutation in the system passes through an
// implementation of this package's interfaces inside a transaction.
package state

import "time"

// ProjectStatus is the lifecycle state of a Project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectPaused    ProjectStatus = "PAUSED"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectArchived  ProjectStatus = "ARCHIVED"
)

// Project owns a working directory on the host file system.
type Project struct {
	ID               string
	Name             string
	WorkingDirectory string
	Status           ProjectStatus
	IsDeleted        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Variant identifies which work-item kind a row belongs to.
type Variant string

const (
	VariantEpic      Variant = "EPIC"
	VariantStory     Variant = "STORY"
	VariantTask      Variant = "TASK"
	VariantSubtask   Variant = "SUBTASK"
	VariantMilestone Variant = "MILESTONE"
)

// WorkItemStatus is the lifecycle state shared by all work-item variants.
type WorkItemStatus string

const (
	StatusPending   WorkItemStatus = "PENDING"
	StatusRunning   WorkItemStatus = "RUNNING"
	StatusBlocked   WorkItemStatus = "BLOCKED"
	StatusCompleted WorkItemStatus = "COMPLETED"
	StatusFailed    WorkItemStatus = "FAILED"
	StatusCancelled WorkItemStatus = "CANCELLED"
)

// Priority constants per spec.md 3 ("1-10; HIGH=1, MEDIUM=5, LOW=10").
const (
	PriorityHigh   = 1
	PriorityMedium = 5
	PriorityLow    = 10
)

// AllSentinel is the reserved identifier meaning "every item of the
// stated variant in the stated scope". It must never be persisted as a
// real identifier; StatePort implementations reject it on write.
const AllSentinel = "__ALL__"

// WorkItem is the common shape of Epic, Story, Task, Subtask, and
// Milestone rows. EpicID/StoryID/ParentTaskID record optional ownership;
// MilestoneEpicIDs is populated only for Variant == VariantMilestone.
type WorkItem struct {
	ID           string
	ProjectID    string
	Variant      Variant
	Title        string
	Description  string
	Priority     int
	Status       WorkItemStatus
	Dependencies []string

	EpicID        *string
	StoryID       *string
	ParentTaskID  *string
	MilestoneEpicIDs []string

	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionRefreshed SessionStatus = "REFRESHED"
	SessionAbandoned SessionStatus = "ABANDONED"
)

// Session is the unit of continuity with the implementer agent for a
// milestone. Exactly one ACTIVE session exists per (project, milestone).
type Session struct {
	ID          string
	ProjectID   string
	MilestoneID *string
	StartedAt   time.Time
	EndedAt     *time.Time
	Status      SessionStatus
	TotalTokens int64
	TotalTurns  int
	Summary     *string
}

// TokenLedgerEntry is an append-only record of tokens consumed by one
// agent call. CacheReadTokens do not count toward the context window.
type TokenLedgerEntry struct {
	ID                 string
	SessionID          string
	TaskID             string
	Timestamp          time.Time
	InputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens    int64
	OutputTokens       int64
	TotalTokens        int64
}

// InteractionMetadata captures the structured per-iteration outcome so
// that "valid" is never collapsed to a bare boolean downstream.
type InteractionMetadata struct {
	TurnsUsed  int
	DurationMS int64
	Quality    int
	Confidence int
	Decision   string
}

// Interaction is an append-only record of one prompt/response round
// trip for a task, in a session, at a given iteration.
type Interaction struct {
	ID        string
	ProjectID string
	TaskID    string
	SessionID string
	Iteration int
	Prompt    string
	Response  string
	Timestamp time.Time
	Metadata  InteractionMetadata
}

// BreakpointReason enumerates why a task paused for resolution.
type BreakpointReason string

const (
	ReasonLowConfidence      BreakpointReason = "LOW_CONFIDENCE"
	ReasonQualityBelowFloor  BreakpointReason = "QUALITY_BELOW_FLOOR"
	ReasonValidationFailed   BreakpointReason = "VALIDATION_FAILED"
	ReasonDestructiveOp      BreakpointReason = "DESTRUCTIVE_OP"
	ReasonExplicitRequest    BreakpointReason = "EXPLICIT_REQUEST"
	ReasonBudgetExhausted    BreakpointReason = "BUDGET_EXHAUSTED"
	ReasonEscalate           BreakpointReason = "ESCALATE"
)

// Resolution is the terminal disposition of a resolved Breakpoint; it
// mirrors the ValidationPipeline Decision vocabulary.
type Resolution string

const (
	ResolutionProceed  Resolution = "PROCEED"
	ResolutionRetry    Resolution = "RETRY"
	ResolutionClarify  Resolution = "CLARIFY"
	ResolutionEscalate Resolution = "ESCALATE"
	ResolutionAbort    Resolution = "ABORT"
)

// Breakpoint is a persisted pause point. A task with an unresolved
// breakpoint may not advance.
type Breakpoint struct {
	ID          string
	TaskID      string
	Reason      BreakpointReason
	TriggeredAt time.Time
	ResolvedAt  *time.Time
	Resolution  *Resolution
}

// CheckpointTrigger enumerates what caused a checkpoint to be created.
type CheckpointTrigger string

const (
	TriggerThreshold     CheckpointTrigger = "THRESHOLD"
	TriggerInterval      CheckpointTrigger = "INTERVAL"
	TriggerOperationCount CheckpointTrigger = "OPERATION_COUNT"
	TriggerManual        CheckpointTrigger = "MANUAL"
)

// Checkpoint is a self-contained, opaque snapshot of working memory plus
// a pointer to the last persisted Interaction id. Restore is idempotent.
type Checkpoint struct {
	ID                string
	SessionID         string
	CreatedAt         time.Time
	Trigger           CheckpointTrigger
	Artifact          []byte
	LastInteractionID string
}
