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

// Command orchctl is the CLI for the orchkit supervised code-agent
// orchestrator.
//
// Usage:
//
//	orchctl project create --name checkout-rewrite --working-dir /repo
//	orchctl task create --project <id> --title "fix login bug"
//	orchctl run <task-id>
//	orchctl interactive
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/orchkit/pkg/config"
	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/eventbus"
	"github.com/kadirpekel/orchkit/pkg/logging"
	"github.com/kadirpekel/orchkit/pkg/memorycore"
	"github.com/kadirpekel/orchkit/pkg/nlpipeline"
	"github.com/kadirpekel/orchkit/pkg/orchestrator"
	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/sessionmgr"
	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/state/memstate"
	"github.com/kadirpekel/orchkit/pkg/turnbudget"
	"github.com/kadirpekel/orchkit/pkg/validation"
)

// Exit codes, per spec.md 6: 0 success, 1 user/usage error, 2
// validation failure, 3 storage fault, 4 agent fault, 5 escalation/
// breakpoint raised.
const (
	exitOK                = 0
	exitUserError         = 1
	exitValidationError   = 2
	exitStorageFault      = 3
	exitAgentFault        = 4
	exitEscalationOrPause = 5
)

// CLI is the top-level command tree.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`

	Project ProjectCmd `cmd:"" help:"Manage projects."`

	Epic      WorkItemCmd `cmd:"" help:"Manage epics."`
	Story     WorkItemCmd `cmd:"" help:"Manage stories."`
	Task      WorkItemCmd `cmd:"" help:"Manage tasks."`
	Subtask   WorkItemCmd `cmd:"" help:"Manage subtasks."`
	Milestone WorkItemCmd `cmd:"" help:"Manage milestones."`

	Run         RunCmd         `cmd:"" help:"Run the orchestrator loop for a single task."`
	Interactive InteractiveCmd `cmd:"" help:"Start the interactive REPL."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Printf("orchctl version %s\n", version)
	return nil
}

// app bundles everything a command needs to act: store, config, and a
// logger already wired to the production sink if configured.
type app struct {
	cfg    *config.Config
	store  state.Port
	logger *slog.Logger
}

func newApp(cliCfgPath, logLevel, logFormat string) (*app, error) {
	cfg, err := config.Load(cliCfgPath)
	if err != nil {
		return nil, err
	}

	logger := logging.Init(logging.ParseLevel(logLevel), os.Stderr, logFormat)
	if cfg.Monitoring.ProductionLogging.Enabled {
		sink, err := logging.NewProductionSink(cfg.Monitoring.ProductionLogging)
		if err != nil {
			return nil, err
		}
		logger = logging.WithProduction(logger, sink)
	}

	// orchctl always uses the in-memory StatePort; no config key or flag
	// selects sqlstate.
	store := memstate.New()

	return &app{cfg: cfg, store: store, logger: logger}, nil
}

func main() {
	cli := CLI{
		Epic:      newEntityCmd(state.VariantEpic),
		Story:     newEntityCmd(state.VariantStory),
		Task:      newEntityCmd(state.VariantTask),
		Subtask:   newEntityCmd(state.VariantSubtask),
		Milestone: newEntityCmd(state.VariantMilestone),
	}
	kctx := kong.Parse(&cli,
		kong.Name("orchctl"),
		kong.Description("Supervised code-agent orchestrator CLI."),
		kong.UsageOnError(),
	)

	a, err := newApp(cli.Config, cli.LogLevel, cli.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchctl:", err)
		os.Exit(exitUserError)
	}

	goCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		a.logger.Info("shutting down")
		cancel()
	}()
	defer cancel()

	err = kctx.Run(a, goCtx)
	code := exitCodeFor(err)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchctl:", err)
	}
	os.Exit(code)
}

// exitCodeFor maps an error to spec.md 6's exit-code contract.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	kind, ok := errs.KindOf(err)
	if !ok {
		return exitUserError
	}
	switch kind {
	case errs.KindValidation:
		return exitValidationError
	case errs.KindStorageFault:
		return exitStorageFault
	case errs.KindAgentFault:
		return exitAgentFault
	case errs.KindEscalation, errs.KindConfirmationRequired, errs.KindContextCritical:
		return exitEscalationOrPause
	default:
		return exitUserError
	}
}

// buildOrchestrator wires a single-project Orchestrator from app state
// plus an AgentPort the caller already resolved (typically from the
// go-plugin registry keyed by cfg.Agent.Type).
func (a *app) buildOrchestrator(agent ports.AgentPort, model ports.ModelPort) *orchestrator.Orchestrator {
	sessions := sessionmgr.New(a.store, a.store, model, a.logger)
	budgeter := turnbudget.New(a.logger)
	bus := eventbus.New(256, a.logger)

	vcfg := validation.DefaultConfig()
	vcfg.QualityFloor = a.cfg.Validation.QualityFloor
	vcfg.QualityTarget = a.cfg.Validation.QualityTarget
	vcfg.ConfidenceFloor = a.cfg.Validation.ConfidenceFloor
	vcfg.ConfidenceTarget = a.cfg.Validation.ConfidenceTarget
	vcfg.BreakpointConfidenceThreshold = a.cfg.Validation.BreakpointConfidenceThreshold

	cfg := orchestrator.Config{
		MaxIterations:        a.cfg.Orchestration.MaxIterations,
		IterationTimeout:     a.cfg.Orchestration.IterationTimeout,
		SessionContextWindow: a.cfg.Model.ContextWindow,
		MaxRetries:           a.cfg.Orchestration.MaxTurns.MaxRetries,
		RetryMultiplier:      a.cfg.Orchestration.MaxTurns.RetryMultiplier,
		AutoRetry:            a.cfg.Orchestration.MaxTurns.AutoRetry,
		ValidationConfig:     vcfg,
		Thresholds: memorycore.Thresholds{
			Warning:  a.cfg.Context.Thresholds.Warning,
			Refresh:  a.cfg.Context.Thresholds.Refresh,
			Critical: a.cfg.Context.Thresholds.Critical,
		},
	}
	return orchestrator.New(a.store, sessions, budgeter, agent, model, bus, cfg, a.logger)
}

// nlPipeline builds an NLPipeline::Pipeline sharing this app's model
// port, for the interactive REPL's natural-language routing. Its bulk
// counter is a closure over this app's store and projectID, since the
// Pipeline itself never sees the store directly.
func (a *app) nlPipeline(model ports.ModelPort, projectID string) *nlpipeline.Pipeline {
	p := nlpipeline.New(nlpipeline.Config{ConfirmUpdates: false}, model, nil)
	return p.WithCounter(func(ctx context.Context, entities []nlpipeline.EntityType) (state.DeleteCounts, error) {
		return nlpipeline.ProjectDeleteCounts(ctx, a.store, projectID, entities)
	})
}

// resolveAgentAndModel builds the AgentPort/ModelPort pair named by
// cfg.Agent.Type/cfg.Model.Type. agent.type is looked up as an
// "orchctl-agent-<type>" binary on PATH and launched as a go-plugin
// subprocess; model.type "gemini" builds the in-process Gemini client.
// Both registries are populated once here, at startup, from
// configuration only -- no dynamic reflection, matching AgentPort's
// plugin-registry contract.
func (a *app) resolveAgentAndModel() (ports.AgentPort, ports.ModelPort, error) {
	agents := ports.NewAgentRegistry()
	if err := agents.Register(a.cfg.Agent.Type, func(cfg map[string]any) (ports.AgentPort, error) {
		binary := "orchctl-agent-" + a.cfg.Agent.Type
		launched, err := ports.LaunchAgentPlugin(binary)
		if err != nil {
			return nil, err
		}
		return launched, nil
	}); err != nil {
		return nil, nil, err
	}

	models := ports.NewModelRegistry()
	if err := models.Register(a.cfg.Model.Type, func(cfg map[string]any) (ports.ModelPort, error) {
		return ports.NewGeminiModel(context.Background(), os.Getenv("GEMINI_API_KEY"), a.cfg.Model.Type, a.cfg.Model.ContextWindow)
	}); err != nil {
		return nil, nil, err
	}

	agent, err := agents.Build(a.cfg.Agent.Type, nil)
	if err != nil {
		return nil, nil, err
	}
	model, err := models.Build(a.cfg.Model.Type, nil)
	if err != nil {
		return nil, nil, err
	}
	return agent, model, nil
}
