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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/orchestrator"
	"github.com/kadirpekel/orchkit/pkg/state"
)

// ProjectCmd groups project lifecycle subcommands.
type ProjectCmd struct {
	Create ProjectCreateCmd `cmd:"" help:"Create a project."`
	List   ProjectListCmd   `cmd:"" help:"List projects."`
	Show   ProjectShowCmd   `cmd:"" help:"Show a project."`
}

type ProjectCreateCmd struct {
	Name       string `required:"" help:"Project name."`
	WorkingDir string `required:"" name:"working-dir" type:"path" help:"Absolute path to the project's working directory."`
}

func (c *ProjectCreateCmd) Run(a *app, ctx context.Context) error {
	p, err := a.store.CreateProject(ctx, c.Name, c.WorkingDir)
	if err != nil {
		return errs.StorageFault("cli.project.create", err)
	}
	return printJSON(p)
}

type ProjectListCmd struct {
	IncludeDeleted bool `name:"include-deleted" help:"Include soft-deleted projects."`
}

func (c *ProjectListCmd) Run(a *app, ctx context.Context) error {
	projects, err := a.store.ListProjects(ctx, c.IncludeDeleted)
	if err != nil {
		return errs.StorageFault("cli.project.list", err)
	}
	return printJSON(projects)
}

type ProjectShowCmd struct {
	ID string `arg:"" help:"Project id."`
}

func (c *ProjectShowCmd) Run(a *app, ctx context.Context) error {
	p, err := a.store.GetProject(ctx, c.ID)
	if err != nil {
		return errs.StorageFault("cli.project.show", err)
	}
	return printJSON(p)
}

// entityCmd is the CRUD+execute subcommand group shared by every
// work-item tier (epic/story/task/subtask/milestone); the variant is
// stamped onto the Create and List leaves at construction time in main
// so a single set of Go types serves all five CLI nouns. Show, Update,
// Delete and Execute act on an item id and carry no variant.
type entityCmd struct {
	Create WorkItemCreateCmd `cmd:"" help:"Create a work item."`
	List   WorkItemListCmd   `cmd:"" help:"List work items."`
	Show   WorkItemShowCmd   `cmd:"" help:"Show a work item."`
	Update WorkItemUpdateCmd `cmd:"" help:"Update a work item."`
	Delete WorkItemDeleteCmd `cmd:"" help:"Delete a work item."`
	Execute WorkItemExecuteCmd `cmd:"" name:"execute" help:"Execute a work item through the orchestrator."`
}

// newEntityCmd builds an entityCmd whose Create and List leaves target
// variant.
func newEntityCmd(variant state.Variant) entityCmd {
	return entityCmd{
		Create: WorkItemCreateCmd{variant: variant},
		List:   WorkItemListCmd{variant: variant},
		Show:   WorkItemShowCmd{},
		Update: WorkItemUpdateCmd{},
		Delete: WorkItemDeleteCmd{},
		Execute: WorkItemExecuteCmd{},
	}
}

// WorkItemCmd is the CLI node for a single tier; the concrete top-level
// fields (Epic, Story, Task, Subtask, Milestone) all share this type.
type WorkItemCmd = entityCmd

type WorkItemCreateCmd struct {
	variant state.Variant // stamped by newEntityCmd; unexported so kong never treats it as a flag

	Project      string   `required:"" name:"project" help:"Project id."`
	Title        string   `required:"" help:"Title."`
	Description  string   `help:"Description."`
	Priority     int      `default:"5" help:"Priority 1 (highest) - 10 (lowest)."`
	Dependencies []string `help:"Dependency work-item ids (comma-separated)."`
	Epic         string   `name:"epic" help:"Parent epic id (stories/tasks)."`
	Story        string   `name:"story" help:"Parent story id (tasks)."`
	ParentTask   string   `name:"parent-task" help:"Parent task id (subtasks)."`
	MilestoneEpics []string `name:"milestone-epics" help:"Epic ids this milestone spans (milestones only)."`
}

func (c *WorkItemCreateCmd) Run(a *app, ctx context.Context) error {
	in := state.NewWorkItem{
		ProjectID:        c.Project,
		Title:            c.Title,
		Description:      c.Description,
		Priority:         c.Priority,
		Dependencies:     c.Dependencies,
		MilestoneEpicIDs: c.MilestoneEpics,
	}
	if c.Epic != "" {
		in.EpicID = &c.Epic
	}
	if c.Story != "" {
		in.StoryID = &c.Story
	}
	if c.ParentTask != "" {
		in.ParentTaskID = &c.ParentTask
	}

	item, err := createByVariant(ctx, a.store, c.variant, in)
	if err != nil {
		return errs.StorageFault("cli.work_item.create", err)
	}
	return printJSON(item)
}

func createByVariant(ctx context.Context, store state.WorkItemStore, variant state.Variant, in state.NewWorkItem) (*state.WorkItem, error) {
	switch variant {
	case state.VariantEpic:
		return store.CreateEpic(ctx, in)
	case state.VariantStory:
		return store.CreateStory(ctx, in)
	case state.VariantTask:
		return store.CreateTask(ctx, in)
	case state.VariantSubtask:
		return store.CreateSubtask(ctx, in)
	case state.VariantMilestone:
		return store.CreateMilestone(ctx, in)
	default:
		return nil, fmt.Errorf("cli: unknown work item variant %q", variant)
	}
}

type WorkItemListCmd struct {
	variant state.Variant // stamped by newEntityCmd

	Project        string `required:"" name:"project" help:"Project id."`
	IncludeDeleted bool   `name:"include-deleted" help:"Include soft-deleted items."`
}

func (c *WorkItemListCmd) Run(a *app, ctx context.Context) error {
	items, err := a.store.ListWorkItems(ctx, state.ListOptions{
		ProjectID:      c.Project,
		Variant:        c.variant,
		IncludeDeleted: c.IncludeDeleted,
	})
	if err != nil {
		return errs.StorageFault("cli.work_item.list", err)
	}
	return printJSON(items)
}

type WorkItemShowCmd struct {
	ID string `arg:"" help:"Work item id."`
}

func (c *WorkItemShowCmd) Run(a *app, ctx context.Context) error {
	item, err := a.store.GetWorkItem(ctx, c.ID)
	if err != nil {
		return errs.StorageFault("cli.work_item.show", err)
	}
	return printJSON(item)
}

type WorkItemUpdateCmd struct {
	ID          string  `arg:"" help:"Work item id."`
	Title       *string `help:"New title."`
	Description *string `help:"New description."`
	Priority    *int    `help:"New priority."`
	Status      *string `help:"New status (PENDING, RUNNING, BLOCKED, COMPLETED, FAILED, CANCELLED)."`
}

func (c *WorkItemUpdateCmd) Run(a *app, ctx context.Context) error {
	updates := state.WorkItemUpdate{
		Title:       c.Title,
		Description: c.Description,
		Priority:    c.Priority,
	}
	if c.Status != nil {
		status := state.WorkItemStatus(strings.ToUpper(*c.Status))
		updates.Status = &status
	}
	item, err := a.store.UpdateWorkItem(ctx, c.ID, updates)
	if err != nil {
		return errs.StorageFault("cli.work_item.update", err)
	}
	return printJSON(item)
}

type WorkItemDeleteCmd struct {
	ID   string `arg:"" help:"Work item id."`
	Hard bool   `help:"Hard-delete instead of the default soft delete."`
}

func (c *WorkItemDeleteCmd) Run(a *app, ctx context.Context) error {
	if err := a.store.DeleteWorkItem(ctx, c.ID, !c.Hard); err != nil {
		return errs.StorageFault("cli.work_item.delete", err)
	}
	fmt.Println("deleted", c.ID)
	return nil
}

// WorkItemExecuteCmd drives a single task through the orchestrator
// synchronously and prints the resulting TaskResult.
type WorkItemExecuteCmd struct {
	ID string `arg:"" help:"Task id to execute."`
}

func (c *WorkItemExecuteCmd) Run(a *app, ctx context.Context) error {
	return runTask(ctx, a, c.ID)
}

// RunCmd is the top-level "orchctl run <task-id>" shorthand for
// Task.Execute.
type RunCmd struct {
	TaskID string `arg:"" help:"Task id to execute."`
}

func (c *RunCmd) Run(a *app, ctx context.Context) error {
	return runTask(ctx, a, c.TaskID)
}

func runTask(ctx context.Context, a *app, taskID string) error {
	agent, model, err := a.resolveAgentAndModel()
	if err != nil {
		return errs.UserError("cli.run", err)
	}
	o := a.buildOrchestrator(agent, model)
	result, err := o.ExecuteTask(ctx, taskID)
	if err != nil {
		return errs.StorageFault("cli.run", err)
	}
	if err := printJSON(result); err != nil {
		return err
	}
	return exitErrorForResult(result)
}

// exitErrorForResult turns a non-terminal-success TaskResult into a
// tagged error so main's exitCodeFor picks the right process exit
// code; a completed task returns nil.
func exitErrorForResult(result orchestrator.TaskResult) error {
	switch result.Status {
	case orchestrator.StatusCompleted:
		return nil
	case orchestrator.StatusPaused, orchestrator.StatusEscalated:
		return errs.Escalation("cli.run")
	case orchestrator.StatusWaitingUser:
		return errs.ConfirmationRequired("cli.run")
	case orchestrator.StatusBlocked, orchestrator.StatusFailed, orchestrator.StatusCancelled:
		return errs.UserError("cli.run", fmt.Errorf("task ended in status %s", result.Status))
	default:
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
