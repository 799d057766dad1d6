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

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/eventbus"
	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/sessionmgr"
	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/state/memstate"
	"github.com/kadirpekel/orchkit/pkg/turnbudget"
	"github.com/kadirpekel/orchkit/pkg/validation"
)

// scriptedAgent returns one AgentResult per Send call, in order, and
// repeats the last entry once exhausted. It never blocks.
type scriptedAgent struct {
	results []ports.AgentResult
	calls   int
	prompts []string
}

func (a *scriptedAgent) Send(ctx context.Context, prompt string, call ports.CallContext) (ports.AgentResult, error) {
	a.prompts = append(a.prompts, prompt)
	i := a.calls
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	a.calls++
	return a.results[i], nil
}

func (a *scriptedAgent) Name() string { return "scripted" }

func newHarness(t *testing.T, agent ports.AgentPort, cfg Config) (*Orchestrator, *memstate.Store, *state.Project) {
	t.Helper()
	store := memstate.New()
	ctx := context.Background()
	project, err := store.CreateProject(ctx, "orchkit", "/tmp/orchkit")
	require.NoError(t, err)

	sessions := sessionmgr.New(store, store, nil, nil)
	budgeter := turnbudget.New(nil)
	bus := eventbus.New(8, nil)
	o := New(store, sessions, budgeter, agent, nil, bus, cfg, nil)
	return o, store, project
}

func TestExecuteTaskBlockedOnIncompleteDependency(t *testing.T) {
	o, store, project := newHarness(t, &scriptedAgent{}, DefaultConfig())
	ctx := context.Background()

	dep, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "dependency"})
	require.NoError(t, err)
	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "dependent", Dependencies: []string{dep.ID}})
	require.NoError(t, err)

	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusBlocked, result.Status)
}

func TestExecuteTaskProceedsOnHighQualityResponse(t *testing.T) {
	cfg := DefaultConfig()
	agent := &scriptedAgent{results: []ports.AgentResult{{
		Text:         "## Summary\nDone.\n## Changes\nAdded the feature.\n```go\nfunc ok() {}\n```\nAll tests pass, no errors.",
		OutputTokens: 50,
		TurnsUsed:    3,
		ExitReason:   ports.ExitOK,
	}}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "implement feature", Description: "add the thing"})
	require.NoError(t, err)

	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, 1, result.Iterations)

	updated, err := store.GetWorkItem(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, state.StatusCompleted, updated.Status)
}

func TestExecuteTaskPausesOnInvalidResponse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	agent := &scriptedAgent{results: []ports.AgentResult{
		{Text: "", ExitReason: ports.ExitOK},
	}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "broken task"})
	require.NoError(t, err)

	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, result.Status, "an invalid response raises a breakpoint that supersedes the decision")
	require.NotEmpty(t, result.BreakpointID)

	bp, err := store.GetUnresolvedBreakpoint(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, bp)
	require.Equal(t, state.ReasonValidationFailed, bp.Reason)
}

func TestExecuteTaskRetriesOnMaxTurnsThenCompletes(t *testing.T) {
	cfg := DefaultConfig()
	agent := &scriptedAgent{results: []ports.AgentResult{
		{Text: "partial", ExitReason: ports.ExitMaxTurns, TurnsUsed: 20},
		{
			Text:         "## Summary\nDone.\n## Changes\nFinished.\n```go\nfunc ok() {}\n```\nAll tests pass, no errors.",
			OutputTokens: 50,
			TurnsUsed:    5,
			ExitReason:   ports.ExitOK,
		},
	}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{
		ProjectID:   project.ID,
		Title:       "refactor authentication across multiple modules",
		Description: "comprehensive refactor touching the entire auth system",
	})
	require.NoError(t, err)

	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, 1, result.Iterations, "a MAX_TURNS retry must not count as an iteration (B2)")
	require.Equal(t, 1, result.Retries)
}

func TestExecuteTaskCancelledBetweenIterations(t *testing.T) {
	cfg := DefaultConfig()
	agent := &scriptedAgent{results: []ports.AgentResult{
		{Text: "", ExitReason: ports.ExitOK},
	}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "cancel me"})
	require.NoError(t, err)

	o.RequestCancel(task.ID)
	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, result.Status)
}

func TestExecuteTaskInjectNextPromptAppendedOnce(t *testing.T) {
	cfg := DefaultConfig()
	agent := &scriptedAgent{results: []ports.AgentResult{
		{
			Text:         "## Summary\nDone.\n## Changes\nAdded it.\n```go\nfunc ok() {}\n```\nAll tests pass, no errors.",
			OutputTokens: 50,
			TurnsUsed:    3,
			ExitReason:   ports.ExitOK,
		},
	}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "implement feature"})
	require.NoError(t, err)

	o.InjectNextPrompt(task.ID, "use the v2 API, not v1")
	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)

	require.Len(t, agent.prompts, 1)
	require.Contains(t, agent.prompts[0], "use the v2 API, not v1")
}

func TestExecuteTaskOverrideNextDecisionForcesProceedOverEscalate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	agent := &scriptedAgent{results: []ports.AgentResult{
		// Valid but incomplete and out of iterations: the DecisionEngine
		// would otherwise escalate (no breakpoint rule fires at this
		// quality/confidence, so the override has a verdict to beat).
		{Text: "partial work done", ExitReason: ports.ExitOK},
	}}
	o, store, project := newHarness(t, agent, cfg)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "forced proceed"})
	require.NoError(t, err)

	o.OverrideNextDecision(task.ID, validation.DecisionProceed)
	result, err := o.ExecuteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status, "an operator override must win over the DecisionEngine's own verdict")

	updated, err := store.GetWorkItem(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, state.StatusCompleted, updated.Status)
}

func TestPipelineEvaluateSmokeUsedByOrchestrator(t *testing.T) {
	// Sanity check that the validation package's DefaultConfig with a
	// nil ModelPort, the path the Orchestrator relies on when no
	// validator model is configured, still runs.
	p := validation.New(validation.DefaultConfig(), nil)
	out := p.Evaluate(context.Background(), validation.Input{Response: "", IterationsLeft: 0})
	require.False(t, out.Validation.Valid)
	require.Equal(t, validation.DecisionEscalate, out.Decision)
}
