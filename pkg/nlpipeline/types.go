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

// Package nlpipeline turns a user sentence into a typed OperationContext
// the Orchestrator/StatePort can act on, or a clarification/confirmation
// prompt. It never guesses: below the auto-execution confidence
// threshold it asks.
package nlpipeline

import (
	"time"

	"github.com/kadirpekel/orchkit/pkg/state"
)

// Intent is the first classification stage's output.
type Intent string

const (
	IntentCommand      Intent = "COMMAND"
	IntentQuery        Intent = "QUERY"
	IntentConfirmation Intent = "CONFIRMATION"
	IntentCancellation Intent = "CANCELLATION"
	IntentHelp         Intent = "HELP"
	IntentConversation Intent = "CONVERSATION"
)

// Operation is the CRUD-ish verb the sentence maps to.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpRead   Operation = "READ"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpQuery  Operation = "QUERY"
)

// EntityType is the entity-classifier's output alphabet. It is a
// superset of state.Variant (it also recognizes PROJECT, which is not
// itself a work-item variant).
type EntityType string

const (
	EntityProject   EntityType = "PROJECT"
	EntityEpic      EntityType = "EPIC"
	EntityStory     EntityType = "STORY"
	EntityTask      EntityType = "TASK"
	EntitySubtask   EntityType = "SUBTASK"
	EntityMilestone EntityType = "MILESTONE"
)

// Variant converts e to the matching state.Variant. ok is false for
// EntityProject, which has no Variant counterpart.
func (e EntityType) Variant() (state.Variant, bool) {
	switch e {
	case EntityEpic:
		return state.VariantEpic, true
	case EntityStory:
		return state.VariantStory, true
	case EntityTask:
		return state.VariantTask, true
	case EntitySubtask:
		return state.VariantSubtask, true
	case EntityMilestone:
		return state.VariantMilestone, true
	default:
		return "", false
	}
}

// AllSentinel marks a bulk target resolved from a keyword like "all",
// "every", "each", or "entire" instead of a specific id or title.
const AllSentinel = "__ALL__"

// OperationContext is the typed, executable result of a successful NL
// parse: an operation against a set of entity types with extracted
// identifiers and parameters.
type OperationContext struct {
	Operation   Operation
	EntityTypes []EntityType
	Identifier  string // integer id, title, or AllSentinel
	Scope       string // "current_project" unless named explicitly
	Params      Params
	Confidence  int
}

// Params holds optional work-item fields. Fields absent from the
// sentence must be left as nil/zero, never populated with an explicit
// null: ParamExtractor enforces omission, not nullification.
type Params struct {
	Title        *string
	Description  *string
	Priority     *int
	Status       *state.WorkItemStatus
	Dependencies []string
	EpicID       *string
	StoryID      *string
	ParentTaskID *string
}

// StageConfidences records each classifier stage's self-reported
// confidence (0-100). Overall confidence is min(stage_confidences), per
// the "zero guessing" requirement: one weak stage sinks the whole
// parse.
type StageConfidences struct {
	Intent     int
	Operation  int
	EntityType int
	Identifier int
	Parameter  int
	Validator  int
}

// Min returns the weakest stage's confidence, which is the pipeline's
// overall confidence.
func (s StageConfidences) Min() int {
	min := s.Intent
	for _, v := range []int{s.Operation, s.EntityType, s.Identifier, s.Parameter, s.Validator} {
		if v < min {
			min = v
		}
	}
	return min
}

// WeakestStage names the stage that produced Min(), used in
// clarification prompts.
func (s StageConfidences) WeakestStage() string {
	stages := map[string]int{
		"intent":      s.Intent,
		"operation":   s.Operation,
		"entity_type": s.EntityType,
		"identifier":  s.Identifier,
		"parameter":   s.Parameter,
		"validator":   s.Validator,
	}
	weakest, min := "", 101
	for name, v := range stages {
		if v < min {
			min, weakest = v, name
		}
	}
	return weakest
}

// AutoExecuteThreshold is the minimum overall confidence the pipeline
// will act on without asking for clarification first. Deliberately
// raised from a historical 0.8 threshold.
const AutoExecuteThreshold = 70

// PendingConfirmation is the in-memory state held between a destructive
// request passing validation and the user's next reply.
type PendingConfirmation struct {
	Context     OperationContext
	Prompt      string
	CreatedAt   time.Time
	ConvID      string
}

// Expired reports whether now-CreatedAt exceeds timeout.
func (p PendingConfirmation) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.CreatedAt) > timeout
}

// DefaultConfirmationTimeout is the 60-second default window a pending
// confirmation stays live.
const DefaultConfirmationTimeout = 60 * time.Second

// ErrorKind names why a Result carries no operation context, mirroring
// errs.Kind but scoped to NL-specific outcomes so callers don't need to
// import errs just to branch on this.
type ErrorKind string

const (
	ErrorNone          ErrorKind = ""
	ErrorLowConfidence ErrorKind = "low_confidence"
	ErrorValidation    ErrorKind = "validation_error"
	ErrorUnrecognized  ErrorKind = "unrecognized"
)

// Result is the tagged variant returned to every caller: at most one of
// OperationContext (ready to execute), a Pending confirmation, or an
// ErrorKind explaining why neither is present. HELP and CONVERSATION
// replies carry none of the three, only ResponseText.
type Result struct {
	Intent       Intent
	Operation    *OperationContext
	ResponseText string
	Confidence   int
	Pending      *PendingConfirmation
	ErrorKind    ErrorKind
}
