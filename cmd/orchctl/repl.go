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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kadirpekel/orchkit/pkg/nlpipeline"
	"github.com/kadirpekel/orchkit/pkg/orchestrator"
	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/validation"
)

// slashCommands is the fixed vocabulary tab completion offers; these
// are the only inputs that route directly to REPL control rather than
// through NLPipeline.
var slashCommands = []string{
	"/help", "/status", "/pause", "/resume", "/stop",
	"/send-to-implementer", "/override-decision",
}

// InteractiveCmd starts the terminal REPL.
type InteractiveCmd struct {
	Project string `help:"Project id this session operates on."`
}

func (c *InteractiveCmd) Run(a *app, ctx context.Context) error {
	agent, model, err := a.resolveAgentAndModel()
	if err != nil {
		return err
	}
	orch := a.buildOrchestrator(agent, model)
	pipeline := a.nlPipeline(model, c.Project)

	r := &repl{
		app:       a,
		orch:      orch,
		pipeline:  pipeline,
		projectID: c.Project,
		convID:    "repl",
	}
	return r.run(ctx)
}

// repl holds the interactive session's routing target and pending
// cancel/pause state; there is exactly one live task at a time, named
// by activeTaskID.
type repl struct {
	app      *app
	orch     *orchestrator.Orchestrator
	pipeline *nlpipeline.Pipeline

	projectID    string
	convID       string
	activeTaskID string
	paused       bool
}

// decisionNames maps the /override-decision vocabulary onto
// validation.Decision. Keys are lower-case; the command itself accepts
// either case.
var decisionNames = map[string]validation.Decision{
	"proceed":  validation.DecisionProceed,
	"retry":    validation.DecisionRetry,
	"clarify":  validation.DecisionClarify,
	"escalate": validation.DecisionEscalate,
	"abort":    validation.DecisionAbort,
}

func (r *repl) run(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	oldState, rawErr := term.MakeRaw(fd)
	isRaw := rawErr == nil
	if isRaw {
		defer term.Restore(fd, oldState)
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "")
	t.SetPrompt(r.prompt())
	t.AutoCompleteCallback = r.autoComplete

	fmt.Fprintln(t, "orchctl interactive -- type /help for commands, or describe what you want done.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			t.SetPrompt(r.prompt())
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := r.handleSlash(ctx, t, line); done {
				return nil
			}
		} else {
			r.handleNL(ctx, t, line)
		}
		t.SetPrompt(r.prompt())
	}
}

// prompt shows the current routing target so the user always knows
// what a bare sentence will act against.
func (r *repl) prompt() string {
	target := r.projectID
	if target == "" {
		target = "no-project"
	}
	if r.activeTaskID != "" {
		target = target + "/" + r.activeTaskID
	}
	return fmt.Sprintf("orchkit[%s]> ", target)
}

// autoComplete only completes the fixed slash-command vocabulary; free
// text is left to the user and routed through NLPipeline unmodified.
func (r *repl) autoComplete(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' || !strings.HasPrefix(line, "/") {
		return "", 0, false
	}
	prefix := line[:pos]
	for _, cmd := range slashCommands {
		if strings.HasPrefix(cmd, prefix) && cmd != prefix {
			return cmd, len(cmd), true
		}
	}
	return "", 0, false
}

// handleSlash dispatches a required REPL command. It returns true when
// the REPL should exit (/stop).
func (r *repl) handleSlash(ctx context.Context, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/help":
		fmt.Fprintln(out, "/help                        show this message")
		fmt.Fprintln(out, "/status                      show the active task's status")
		fmt.Fprintln(out, "/pause                       request cancellation of the active task")
		fmt.Fprintln(out, "/resume                      re-execute the active task")
		fmt.Fprintln(out, "/stop                        exit the REPL")
		fmt.Fprintln(out, "/send-to-implementer <text>  send a raw instruction straight to the agent, bypassing NLPipeline")
		fmt.Fprintln(out, "/override-decision <proceed|retry|clarify|escalate|abort>  force the next decision")

	case "/status":
		if r.activeTaskID == "" {
			fmt.Fprintln(out, "no active task")
			break
		}
		item, err := r.app.store.GetWorkItem(ctx, r.activeTaskID)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			break
		}
		fmt.Fprintf(out, "task %s: %s (%s)\n", item.ID, item.Title, item.Status)

	case "/pause":
		if r.activeTaskID == "" {
			fmt.Fprintln(out, "no active task to pause")
			break
		}
		r.orch.RequestCancel(r.activeTaskID)
		r.paused = true
		fmt.Fprintln(out, "cancellation requested; the task will stop at its next iteration boundary")

	case "/resume":
		if r.activeTaskID == "" {
			fmt.Fprintln(out, "no active task to resume")
			break
		}
		r.paused = false
		r.executeActiveTask(ctx, out)

	case "/stop":
		fmt.Fprintln(out, "goodbye")
		return true

	case "/send-to-implementer":
		if len(args) == 0 {
			fmt.Fprintln(out, "usage: /send-to-implementer <instruction>")
			break
		}
		if r.activeTaskID == "" {
			fmt.Fprintln(out, "no active task to send an instruction to")
			break
		}
		r.orch.InjectNextPrompt(r.activeTaskID, strings.Join(args, " "))
		fmt.Fprintln(out, "instruction queued; it will be appended to the next prompt built for this task")

	case "/override-decision":
		if len(args) == 0 {
			fmt.Fprintln(out, "usage: /override-decision <proceed|retry|clarify|escalate|abort>")
			break
		}
		if r.activeTaskID == "" {
			fmt.Fprintln(out, "no active task to override a decision for")
			break
		}
		decision, ok := decisionNames[strings.ToLower(args[0])]
		if !ok {
			fmt.Fprintf(out, "unrecognized decision %q; want one of proceed, retry, clarify, escalate, abort\n", args[0])
			break
		}
		r.orch.OverrideNextDecision(r.activeTaskID, decision)
		fmt.Fprintf(out, "decision override to %s recorded for this task's next iteration\n", decision)

	default:
		fmt.Fprintf(out, "unrecognized command %q; try /help\n", cmd)
	}
	return false
}

// handleNL routes free text through NLPipeline and, when it resolves to
// a ready-to-run operation, executes it against the StatePort.
func (r *repl) handleNL(ctx context.Context, out io.Writer, text string) {
	result := r.pipeline.Process(ctx, r.convID, text)

	if result.Pending != nil {
		fmt.Fprintln(out, result.ResponseText)
		return
	}
	if result.Operation == nil {
		fmt.Fprintln(out, result.ResponseText)
		return
	}

	op := *result.Operation
	fmt.Fprintf(out, "[confidence %d] %s\n", op.Confidence, result.ResponseText)
	r.dispatch(ctx, out, op)
}

// dispatch executes a resolved OperationContext against the StatePort.
// CREATE of a task makes it the REPL's new active task, so a follow-up
// "/resume" or another sentence naturally targets it.
func (r *repl) dispatch(ctx context.Context, out io.Writer, op nlpipeline.OperationContext) {
	projectID := r.projectID
	if projectID == "" {
		fmt.Fprintln(out, "no project selected; start orchctl interactive --project <id>")
		return
	}

	switch op.Operation {
	case nlpipeline.OpCreate:
		if len(op.EntityTypes) != 1 {
			fmt.Fprintln(out, "ambiguous entity type for create; name exactly one of epic/story/task/subtask/milestone")
			return
		}
		variant, ok := op.EntityTypes[0].Variant()
		if !ok {
			fmt.Fprintln(out, "that entity type cannot be created directly")
			return
		}
		in := toNewWorkItem(projectID, op.Params)
		item, err := createByVariant(ctx, r.app.store, variant, in)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		fmt.Fprintf(out, "created %s %s\n", item.Variant, item.ID)
		if item.Variant == state.VariantTask {
			r.activeTaskID = item.ID
		}

	case nlpipeline.OpQuery, nlpipeline.OpRead:
		if op.Identifier != "" && op.Identifier != nlpipeline.AllSentinel {
			item, err := r.app.store.GetWorkItem(ctx, op.Identifier)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				return
			}
			fmt.Fprintf(out, "%s %s: %s (%s)\n", item.Variant, item.ID, item.Title, item.Status)
			return
		}
		items, err := r.app.store.ListWorkItems(ctx, toListOptions(projectID, op.EntityTypes))
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		fmt.Fprintf(out, "%d item(s)\n", len(items))
		for _, item := range items {
			fmt.Fprintf(out, "  %s %s: %s (%s)\n", item.Variant, item.ID, item.Title, item.Status)
		}

	case nlpipeline.OpUpdate:
		updates := toWorkItemUpdate(op.Params)
		item, err := r.app.store.UpdateWorkItem(ctx, op.Identifier, updates)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		fmt.Fprintf(out, "updated %s %s\n", item.Variant, item.ID)

	case nlpipeline.OpDelete:
		if op.Identifier == nlpipeline.AllSentinel {
			counts, err := nlpipeline.ExecuteBulkDelete(ctx, r.app.store, projectID, op.EntityTypes)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				return
			}
			fmt.Fprintf(out, "deleted %s\n", counts.Describe())
			return
		}
		if err := r.app.store.DeleteWorkItem(ctx, op.Identifier, true); err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		fmt.Fprintln(out, "deleted", op.Identifier)
	}
}

// executeActiveTask runs the orchestrator loop for r.activeTaskID and
// prints the resulting status.
func (r *repl) executeActiveTask(ctx context.Context, out io.Writer) {
	result, err := r.orch.ExecuteTask(ctx, r.activeTaskID)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintf(out, "task finished: status=%s iterations=%d retries=%d\n", result.Status, result.Iterations, result.Retries)
}

// toNewWorkItem converts a parsed Params into a NewWorkItem for
// projectID. Absent optional params simply stay zero-valued; Title is
// the one field ParamExtractor guarantees is present for CREATE.
func toNewWorkItem(projectID string, p nlpipeline.Params) state.NewWorkItem {
	in := state.NewWorkItem{
		ProjectID:    projectID,
		Dependencies: p.Dependencies,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Priority != nil {
		in.Priority = *p.Priority
	}
	in.EpicID = p.EpicID
	in.StoryID = p.StoryID
	in.ParentTaskID = p.ParentTaskID
	return in
}

// toListOptions builds ListOptions for a QUERY/READ with no specific
// identifier. A single resolved EntityType narrows the variant filter;
// anything else (PROJECT, multiple types, or none) leaves Variant zero
// so ListWorkItems returns every tier.
func toListOptions(projectID string, entityTypes []nlpipeline.EntityType) state.ListOptions {
	opts := state.ListOptions{ProjectID: projectID}
	if len(entityTypes) == 1 {
		if variant, ok := entityTypes[0].Variant(); ok {
			opts.Variant = variant
		}
	}
	return opts
}

// toWorkItemUpdate converts a parsed Params into a WorkItemUpdate.
// Every field is carried through as-is: Params already enforces
// "absent means nil, never an explicit null", the same contract
// WorkItemUpdate relies on to mean "leave unchanged".
func toWorkItemUpdate(p nlpipeline.Params) state.WorkItemUpdate {
	var deps *[]string
	if p.Dependencies != nil {
		deps = &p.Dependencies
	}
	return state.WorkItemUpdate{
		Title:        p.Title,
		Description:  p.Description,
		Priority:     p.Priority,
		Status:       p.Status,
		Dependencies: deps,
		EpicID:       p.EpicID,
		StoryID:      p.StoryID,
		ParentTaskID: p.ParentTaskID,
	}
}
