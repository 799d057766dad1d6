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

// Package orchestrator runs the per-task iteration loop: it fans out to
// the TurnBudgeter, SessionManager, ValidationPipeline, and EventBus,
// and owns retries and escalation. One Orchestrator runs a single
// cooperative loop per project; multiple projects run in parallel
// worker goroutines (see Pool).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/eventbus"
	"github.com/kadirpekel/orchkit/pkg/memorycore"
	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/sessionmgr"
	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/turnbudget"
	"github.com/kadirpekel/orchkit/pkg/validation"
)

// Status is the terminal (or suspended) outcome of ExecuteTask.
type Status string

const (
	StatusCompleted   Status = "COMPLETED"
	StatusBlocked     Status = "BLOCKED"
	StatusPaused      Status = "PAUSED"
	StatusWaitingUser Status = "WAITING_USER"
	StatusEscalated   Status = "ESCALATED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// TaskResult is the structured outcome spec.md 4.8 requires: it is
// never collapsed to a bare success boolean.
type TaskResult struct {
	Status             Status
	Iterations         int
	Retries            int
	Quality            int
	Confidence         int
	Response           string
	BreakpointID       string
	ClarificationText  string
}

// Config holds the `orchestration` section of spec.md 6.
type Config struct {
	MaxIterations        int
	IterationTimeout     time.Duration
	SessionContextWindow int // validator/implementer-declared window used for the Context Window Manager
	MaxRetries           int // bounds both transient AgentFault retries (sendWithRetry) and MAX_TURNS turn-budget retries
	RetryMultiplier      float64
	AutoRetry            bool
	ValidationConfig     validation.Config
	Thresholds           memorycore.Thresholds
}

// DefaultConfig matches spec.md 4.4/4.5/4.8/6's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        10,
		IterationTimeout:      2 * time.Hour,
		SessionContextWindow: 128_000,
		MaxRetries:           3,
		RetryMultiplier:      2.0,
		AutoRetry:            true,
		ValidationConfig:     validation.DefaultConfig(),
		Thresholds:           memorycore.DefaultThresholds(),
	}
}

// Orchestrator is the single owner of one project's iteration loop at a
// time. It is safe to share across goroutines running different
// projects; ExecuteTask itself is synchronous and blocking.
type Orchestrator struct {
	store    state.Port
	sessions *sessionmgr.Manager
	budgeter *turnbudget.Budgeter
	agent    ports.AgentPort
	model    ports.ModelPort
	bus      *eventbus.Bus
	cwm      *memorycore.ContextWindowManager
	cfg      Config
	logger   *slog.Logger

	cancelFlags     sync.Map // taskID -> *atomic.Bool
	pendingInjects  sync.Map // taskID -> string, consumed by the next buildPrompt call
	pendingDecision sync.Map // taskID -> validation.Decision, consumed by the next decision step
}

// New builds an Orchestrator from its collaborators. agent and model
// may be nil in tests that only exercise the blocked/cancel paths.
func New(store state.Port, sessions *sessionmgr.Manager, budgeter *turnbudget.Budgeter, agent ports.AgentPort, model ports.ModelPort, bus *eventbus.Bus, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = eventbus.New(0, logger)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.SessionContextWindow <= 0 {
		cfg.SessionContextWindow = DefaultConfig().SessionContextWindow
	}
	if cfg.RetryMultiplier <= 0 {
		cfg.RetryMultiplier = DefaultConfig().RetryMultiplier
	}
	return &Orchestrator{
		store:    store,
		sessions: sessions,
		budgeter: budgeter,
		agent:    agent,
		model:    model,
		bus:      bus,
		cwm:      memorycore.NewContextWindowManager(cfg.Thresholds),
		cfg:      cfg,
		logger:   logger,
	}
}

// RequestCancel flips the cooperative cancel flag for taskID. The loop
// observes it between iterations and before every outgoing call.
func (o *Orchestrator) RequestCancel(taskID string) {
	o.cancelFlag(taskID).Store(true)
}

func (o *Orchestrator) cancelFlag(taskID string) *atomic.Bool {
	v, _ := o.cancelFlags.LoadOrStore(taskID, &atomic.Bool{})
	return v.(*atomic.Bool)
}

// InjectNextPrompt records text to be appended to taskID's next built
// prompt, bypassing NLPipeline and the implementer's normal context.
// It is consumed (and cleared) by the very next iteration's prompt
// build, not every subsequent one.
func (o *Orchestrator) InjectNextPrompt(taskID, text string) {
	o.pendingInjects.Store(taskID, text)
}

// OverrideNextDecision forces taskID's next ValidationPipeline decision
// to d, skipping the DecisionEngine for that one iteration. It is
// consumed (and cleared) the next time ExecuteTask reaches a decision
// point for taskID.
func (o *Orchestrator) OverrideNextDecision(taskID string, d validation.Decision) {
	o.pendingDecision.Store(taskID, d)
}

func (o *Orchestrator) takePendingInject(taskID string) string {
	v, ok := o.pendingInjects.LoadAndDelete(taskID)
	if !ok {
		return ""
	}
	return v.(string)
}

func (o *Orchestrator) takePendingDecision(taskID string) (validation.Decision, bool) {
	v, ok := o.pendingDecision.LoadAndDelete(taskID)
	if !ok {
		return "", false
	}
	return v.(validation.Decision), true
}

// ExecuteTask runs the iteration loop of spec.md 4.8 for taskID.
func (o *Orchestrator) ExecuteTask(ctx context.Context, taskID string) (TaskResult, error) {
	task, err := o.store.GetWorkItem(ctx, taskID)
	if err != nil {
		return TaskResult{}, errs.StorageFault("orchestrator.execute_task", err)
	}

	// Step 1: dependency gate. The task may not advance while any
	// dependency is not COMPLETED (P3).
	for _, depID := range task.Dependencies {
		dep, err := o.store.GetWorkItem(ctx, depID)
		if err != nil {
			return TaskResult{}, errs.StorageFault("orchestrator.execute_task.dependency_check", err)
		}
		if dep.Status != state.StatusCompleted {
			return TaskResult{Status: StatusBlocked}, nil
		}
	}

	project, err := o.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return TaskResult{}, errs.StorageFault("orchestrator.execute_task.get_project", err)
	}

	// Step 2: adaptive turn budget, logged for auditability.
	budget := o.budgeter.Calculate(turnbudget.Task{
		Title:       task.Title,
		Description: task.Description,
	})
	maxTurns := budget.MaxTurns
	o.logger.Info("computed turn budget", "task_id", taskID, "max_turns", maxTurns, "rationale", budget.Rationale)

	// Step 3: ensure an ACTIVE session and build milestone context.
	milestoneID := o.resolveMilestoneID(ctx, task)
	session, err := o.sessions.EnsureSession(ctx, task.ProjectID, milestoneID)
	if err != nil {
		return TaskResult{}, errs.StorageFault("orchestrator.execute_task.ensure_session", err)
	}
	milestoneCtx, err := o.sessions.BuildMilestoneContext(ctx, project, milestoneID)
	if err != nil {
		return TaskResult{}, errs.StorageFault("orchestrator.execute_task.build_context", err)
	}

	pipeline := validation.New(o.cfg.ValidationConfig, o.model)
	cancelFlag := o.cancelFlag(taskID)

	var transcript strings.Builder
	var priorQuality []int
	retries := 0

	task.Status = state.StatusRunning

	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		if cancelFlag.Load() {
			o.bus.Publish(eventbus.Event{Type: eventbus.Paused, Producer: taskID, Payload: map[string]any{"iteration": iteration}})
			return TaskResult{Status: StatusCancelled, Iterations: iteration - 1, Retries: retries}, nil
		}

		// Step 4a: context-window zone check, refresh before the next
		// call if orange or red.
		usage, err := o.sessions.TokenUsage(ctx, session.ID)
		if err != nil {
			return TaskResult{}, errs.StorageFault("orchestrator.execute_task.token_usage", err)
		}
		usagePct := float64(usage) / float64(o.cfg.SessionContextWindow)
		if o.cwm.ShouldRefreshBeforeNextCall(usagePct) {
			next, summary, err := o.sessions.RefreshSessionWithSummary(ctx, session, transcript.String())
			if err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.refresh_session", err)
			}
			session = next
			milestoneCtx = "Previous session summary:\n" + summary + "\n\n" + milestoneCtx
			o.bus.Publish(eventbus.Event{Type: eventbus.SessionRefreshed, Producer: taskID, Payload: map[string]any{"session_id": session.ID}})
		}

		// Step 4b: build the prompt, appending any operator-injected
		// instruction queued for this task (/send-to-implementer).
		prompt := buildPrompt(milestoneCtx, task, transcript.String())
		if inject := o.takePendingInject(taskID); inject != "" {
			prompt += "\n\nOperator instruction: " + inject
		}
		o.bus.Publish(eventbus.Event{Type: eventbus.PromptPrepared, Producer: taskID, Payload: map[string]any{"iteration": iteration}})

		if cancelFlag.Load() {
			return TaskResult{Status: StatusCancelled, Iterations: iteration - 1, Retries: retries}, nil
		}

		// Step 4c: call the agent, retrying transient AgentFaults with
		// exponential backoff (spec.md 7).
		result, sendErr := o.sendWithRetry(ctx, prompt, ports.CallContext{
			SessionID:        session.ID,
			MaxTurns:         maxTurns,
			WorkingDirectory: project.WorkingDirectory,
			Timeout:          o.cfg.IterationTimeout,
		})
		o.bus.Publish(eventbus.Event{Type: eventbus.PromptSent, Producer: taskID})
		if sendErr != nil {
			bp, _ := o.store.CreateBreakpoint(ctx, taskID, state.ReasonEscalate)
			return TaskResult{Status: StatusEscalated, BreakpointID: safeID(bp), Iterations: iteration - 1, Retries: retries}, errs.AgentFault("orchestrator.execute_task.send", sendErr)
		}
		o.bus.Publish(eventbus.Event{Type: eventbus.ResponseReceived, Producer: taskID, Payload: map[string]any{"exit_reason": string(result.ExitReason)}})

		// Step 4d: MAX_TURNS -> double max_turns (clamped) and retry
		// the same iteration; this counts as a retry, not an iteration
		// (B2).
		if result.ExitReason == ports.ExitMaxTurns && o.cfg.AutoRetry && retries < o.cfg.MaxRetries {
			maxTurns = o.budgeter.Retry(maxTurns, o.cfg.RetryMultiplier)
			retries++
			o.logger.Info("max_turns exhausted, retrying with larger budget", "task_id", taskID, "max_turns", maxTurns, "retry", retries)
			iteration--
			continue
		}
		if result.ExitReason == ports.ExitMaxTurns {
			bp, err := o.store.CreateBreakpoint(ctx, taskID, state.ReasonBudgetExhausted)
			if err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.create_breakpoint", err)
			}
			return TaskResult{Status: StatusEscalated, BreakpointID: bp.ID, Iterations: iteration, Retries: retries}, nil
		}

		// Step 4e: append tokens to the ledger.
		entry := state.TokenLedgerEntry{
			ID:                  uuid.NewString(),
			SessionID:           session.ID,
			TaskID:              taskID,
			Timestamp:           time.Now().UTC(),
			InputTokens:         result.InputTokens,
			CacheCreationTokens: result.CacheCreationTokens,
			CacheReadTokens:     result.CacheReadTokens,
			OutputTokens:        result.OutputTokens,
			TotalTokens:         result.TotalBillableTokens(),
		}
		if err := o.sessions.RecordUsage(ctx, entry); err != nil {
			return TaskResult{}, errs.StorageFault("orchestrator.execute_task.record_usage", err)
		}

		// Step 4f: run the ValidationPipeline.
		out := pipeline.Evaluate(ctx, validation.Input{
			Response:         result.Text,
			IterationsLeft:   o.cfg.MaxIterations - iteration,
			PriorTaskQuality: priorQuality,
		})
		priorQuality = append(priorQuality, out.Quality)

		interaction := state.Interaction{
			ID:        uuid.NewString(),
			ProjectID: task.ProjectID,
			TaskID:    taskID,
			SessionID: session.ID,
			Iteration: iteration,
			Prompt:    prompt,
			Response:  result.Text,
			Timestamp: time.Now().UTC(),
			Metadata: state.InteractionMetadata{
				TurnsUsed:  result.TurnsUsed,
				DurationMS: result.DurationMS,
				Quality:    out.Quality,
				Confidence: out.Confidence,
				Decision:   string(out.Decision),
			},
		}
		if _, err := o.store.AppendInteraction(ctx, interaction); err != nil {
			return TaskResult{}, errs.StorageFault("orchestrator.execute_task.append_interaction", err)
		}
		o.bus.Publish(eventbus.Event{Type: eventbus.ValidationDone, Producer: taskID, Payload: map[string]any{
			"quality": out.Quality, "confidence": out.Confidence, "valid": out.Validation.Valid,
		}})

		transcript.WriteString(fmt.Sprintf("\n--- iteration %d ---\nagent: %s\n", iteration, result.Text))

		// Step 4g: an unresolved breakpoint supersedes the decision.
		if out.BreakpointHit {
			bp, err := o.store.CreateBreakpoint(ctx, taskID, out.BreakpointWhy)
			if err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.create_breakpoint", err)
			}
			o.bus.Publish(eventbus.Event{Type: eventbus.BreakpointHit, Producer: taskID, Payload: map[string]any{"reason": string(out.BreakpointWhy)}})
			return TaskResult{
				Status:       StatusPaused,
				Iterations:   iteration,
				Retries:      retries,
				Quality:      out.Quality,
				Confidence:   out.Confidence,
				Response:     result.Text,
				BreakpointID: bp.ID,
			}, nil
		}

		// An operator /override-decision takes precedence over the
		// DecisionEngine's own verdict for exactly this one iteration.
		if forced, ok := o.takePendingDecision(taskID); ok {
			out.Decision = forced
		}

		o.bus.Publish(eventbus.Event{Type: eventbus.DecisionMade, Producer: taskID, Payload: map[string]any{"decision": string(out.Decision)}})

		// Step 4h: act on the decision.
		switch out.Decision {
		case validation.DecisionProceed:
			if _, err := o.store.UpdateWorkItem(ctx, taskID, state.WorkItemUpdate{Status: statusPtr(state.StatusCompleted)}); err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.mark_completed", err)
			}
			return TaskResult{Status: StatusCompleted, Iterations: iteration, Retries: retries, Quality: out.Quality, Confidence: out.Confidence, Response: result.Text}, nil
		case validation.DecisionRetry:
			continue
		case validation.DecisionClarify:
			return TaskResult{
				Status:             StatusWaitingUser,
				Iterations:         iteration,
				Retries:            retries,
				Quality:            out.Quality,
				Confidence:         out.Confidence,
				Response:           result.Text,
				ClarificationText:  fmt.Sprintf("confidence %d below floor; please clarify task %q", out.Confidence, task.Title),
			}, nil
		case validation.DecisionEscalate:
			bp, err := o.store.CreateBreakpoint(ctx, taskID, state.ReasonEscalate)
			if err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.create_breakpoint", err)
			}
			return TaskResult{Status: StatusEscalated, Iterations: iteration, Retries: retries, Quality: out.Quality, Confidence: out.Confidence, BreakpointID: bp.ID}, nil
		case validation.DecisionAbort:
			if _, err := o.store.UpdateWorkItem(ctx, taskID, state.WorkItemUpdate{Status: statusPtr(state.StatusFailed)}); err != nil {
				return TaskResult{}, errs.StorageFault("orchestrator.execute_task.mark_failed", err)
			}
			return TaskResult{Status: StatusFailed, Iterations: iteration, Retries: retries, Quality: out.Quality, Confidence: out.Confidence}, nil
		}
	}

	// Step 5: the loop exited without a terminal decision.
	bp, err := o.store.CreateBreakpoint(ctx, taskID, state.ReasonBudgetExhausted)
	if err != nil {
		return TaskResult{}, errs.StorageFault("orchestrator.execute_task.create_breakpoint", err)
	}
	return TaskResult{Status: StatusEscalated, Iterations: o.cfg.MaxIterations, Retries: retries, BreakpointID: bp.ID}, nil
}

// sendWithRetry calls AgentPort.Send, retrying with exponential backoff
// when the failure's exit reason is transient (TIMEOUT, SESSION_LOCKED,
// INTERNAL_ERROR), per spec.md 7.
func (o *Orchestrator) sendWithRetry(ctx context.Context, prompt string, call ports.CallContext) (ports.AgentResult, error) {
	const initialBackoff = 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < o.cfg.MaxRetries+1; attempt++ {
		result, err := o.agent.Send(ctx, prompt, call)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var fault *ports.AgentFaultError
		transient := false
		if asAgentFault(err, &fault) {
			transient = fault.Reason.Transient()
		}
		if !transient || attempt == o.cfg.MaxRetries {
			break
		}

		backoff := initialBackoff * time.Duration(1<<uint(attempt))
		o.logger.Warn("agent call failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ports.AgentResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return ports.AgentResult{}, lastErr
}

func asAgentFault(err error, target **ports.AgentFaultError) bool {
	for err != nil {
		if f, ok := err.(*ports.AgentFaultError); ok {
			*target = f
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// resolveMilestoneID walks a task up through its Epic/Story ownership
// to find a Milestone whose MilestoneEpicIDs names that epic. Returns
// nil when the task is not part of any milestone, which is a normal,
// supported case (ad hoc tasks run with milestone_id = nil).
func (o *Orchestrator) resolveMilestoneID(ctx context.Context, task *state.WorkItem) *string {
	epicID := task.EpicID
	if epicID == nil && task.StoryID != nil {
		story, err := o.store.GetWorkItem(ctx, *task.StoryID)
		if err == nil && story != nil {
			epicID = story.EpicID
		}
	}
	if epicID == nil {
		return nil
	}
	milestones, err := o.store.ListWorkItems(ctx, state.ListOptions{ProjectID: task.ProjectID, Variant: state.VariantMilestone})
	if err != nil {
		return nil
	}
	for _, m := range milestones {
		for _, id := range m.MilestoneEpicIDs {
			if id == *epicID {
				id := m.ID
				return &id
			}
		}
	}
	return nil
}

func buildPrompt(milestoneCtx string, task *state.WorkItem, transcript string) string {
	var b strings.Builder
	b.WriteString(milestoneCtx)
	b.WriteString("\nTask: ")
	b.WriteString(task.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(task.Description)
	if transcript != "" {
		b.WriteString("\n\nRecent interactions:")
		b.WriteString(transcript)
	}
	return b.String()
}

func statusPtr(s state.WorkItemStatus) *state.WorkItemStatus { return &s }

func safeID(bp *state.Breakpoint) string {
	if bp == nil {
		return ""
	}
	return bp.ID
}
