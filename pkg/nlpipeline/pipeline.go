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

package nlpipeline

import (
	"context"
	"fmt"

	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/state"
)

// BulkCounter projects a pending bulk DELETE's per-tier row counts
// ahead of execution, for display in the confirmation prompt. It is
// typically a closure over a fixed project id and a state.Port, set
// via Pipeline.WithCounter by the caller that owns that scope (the
// Pipeline itself has no store access).
type BulkCounter func(ctx context.Context, entities []EntityType) (state.DeleteCounts, error)

// Config tunes pipeline behavior that is not part of the vocabulary
// itself.
type Config struct {
	ConfirmUpdates bool // whether a validated UPDATE also requires confirmation
}

// Pipeline runs the six classifier stages in order and resolves the
// confirmation state machine. A ModelPort may back richer stages in the
// future (intent/entity disambiguation on ambiguous phrasing); the
// lexical classifiers here are sufficient on their own and are always
// run first, matching how the teacher's own classifiers layer a cheap
// pass before an optional model call.
type Pipeline struct {
	cfg     Config
	model   ports.ModelPort
	tracker *ConfirmationTracker
	counter BulkCounter
}

func New(cfg Config, model ports.ModelPort, tracker *ConfirmationTracker) *Pipeline {
	if tracker == nil {
		tracker = NewConfirmationTracker(DefaultConfirmationTimeout)
	}
	return &Pipeline{cfg: cfg, model: model, tracker: tracker}
}

// WithCounter attaches c as p's bulk-delete row-count projector and
// returns p, for chaining onto New.
func (p *Pipeline) WithCounter(c BulkCounter) *Pipeline {
	p.counter = c
	return p
}

// Process runs convID's next user utterance through the pipeline,
// consulting and updating the confirmation tracker first.
func (p *Pipeline) Process(ctx context.Context, convID, text string) Result {
	if pending, ok := p.tracker.Get(convID); ok {
		return p.resolvePending(ctx, convID, text, pending)
	}
	return p.classify(ctx, convID, text)
}

func (p *Pipeline) resolvePending(ctx context.Context, convID, text string, pending PendingConfirmation) Result {
	if isConfirmWord(text) {
		p.tracker.Clear(convID)
		confirmed := pending.Context
		confirmed.Confidence = 100
		return Result{
			Intent:       IntentConfirmation,
			Operation:    &confirmed,
			ResponseText: "Confirmed.",
			Confidence:   100,
		}
	}
	if isCancelWord(text) {
		p.tracker.Clear(convID)
		return Result{
			Intent:       IntentCancellation,
			ResponseText: "Cancelled.",
			Confidence:   100,
		}
	}
	// Any other input clears the pending state implicitly and is
	// processed as a fresh command.
	p.tracker.Clear(convID)
	return p.classify(ctx, convID, text)
}

func (p *Pipeline) classify(ctx context.Context, convID, text string) Result {
	var stages StageConfidences

	intent, intentConf := classifyIntent(text, false)
	stages.Intent = intentConf

	if intent == IntentHelp || intent == IntentConversation {
		return Result{
			Intent:       intent,
			ResponseText: helpOrConversationText(intent),
			Confidence:   intentConf,
		}
	}

	op, opOK := classifyOperation(text)
	if !opOK {
		stages.Operation = 0
	} else {
		stages.Operation = 85
	}

	entities := classifyEntityTypes(text)
	if len(entities) == 0 {
		stages.EntityType = 0
	} else {
		stages.EntityType = 85
	}

	identifier, idConf := extractIdentifier(text)
	stages.Identifier = idConf
	// QUERY without a specific identifier is a listing, not a failure:
	// the identifier stage is not load-bearing for QUERY.
	if op == OpQuery && identifier == "" {
		stages.Identifier = 100
	}

	params, paramConf, err := extractParams(text)
	if err != nil {
		return Result{
			Intent:       IntentCommand,
			ResponseText: err.Error(),
			ErrorKind:    ErrorValidation,
		}
	}
	stages.Parameter = paramConf

	warnings, err := validateOperation(op, entities, identifier, params)
	if err != nil {
		return Result{
			Intent:       IntentCommand,
			ResponseText: err.Error(),
			ErrorKind:    ErrorValidation,
		}
	}
	stages.Validator = 100
	if len(warnings) > 0 {
		stages.Validator = 75
	}

	overall := stages.Min()
	opCtx := OperationContext{
		Operation:   op,
		EntityTypes: entities,
		Identifier:  identifier,
		Scope:       extractScope(text),
		Params:      params,
		Confidence:  overall,
	}

	if overall < AutoExecuteThreshold {
		return Result{
			Intent:       intent,
			ResponseText: clarificationPrompt(stages),
			Confidence:   overall,
			ErrorKind:    ErrorLowConfidence,
		}
	}

	if requiresConfirmation(opCtx, p.cfg.ConfirmUpdates) {
		var counts *state.DeleteCounts
		if opCtx.Operation == OpDelete && p.counter != nil {
			if projected, err := p.counter(ctx, opCtx.EntityTypes); err == nil {
				counts = &projected
			}
		}
		pending := PendingConfirmation{
			Context:   opCtx,
			Prompt:    confirmationPrompt(opCtx, counts),
			ConvID:    convID,
			CreatedAt: p.tracker.now(),
		}
		p.tracker.Set(convID, pending)
		return Result{
			Intent:       intent,
			ResponseText: pending.Prompt,
			Confidence:   overall,
			Pending:      &pending,
		}
	}

	response := "Got it."
	if len(warnings) > 0 {
		response = warnings[0]
	}
	return Result{
		Intent:       intent,
		Operation:    &opCtx,
		ResponseText: response,
		Confidence:   overall,
	}
}

func clarificationPrompt(stages StageConfidences) string {
	return fmt.Sprintf("I'm not confident enough to act on that (weakest stage: %s). Could you clarify?",
		stages.WeakestStage())
}

func helpOrConversationText(intent Intent) string {
	if intent == IntentHelp {
		return "I can create, update, delete, and query projects, epics, stories, tasks, subtasks, and milestones."
	}
	return "I didn't recognize a command in that. Try something like \"create a task called fix login\"."
}
