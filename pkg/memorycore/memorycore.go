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

package memorycore

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/state"
)

// MemoryCore owns the three memory tiers (working, session, episodic)
// for a single orchestrator task and is the only component that writes
// to them. orchestrator.Orchestrator does not construct or call a
// MemoryCore; ExecuteTask builds its prompts from the milestone context
// and transcript without BuildContext or Record.
type MemoryCore struct {
	mu sync.Mutex

	sessionID     string
	profile       Profile
	contextWindow int

	working   *WorkingMemory
	optimizer *Optimizer
	sessions  SessionMemoryStore
	checkpoints state.CheckpointStore

	opsSinceCheckpoint int
}

// New builds a MemoryCore for sessionID, selecting an adaptive
// optimizer profile from the validator's declared context window.
func New(sessionID string, contextWindow int, estimator *Estimator, episodic EpisodicStore, sessions SessionMemoryStore, checkpoints state.CheckpointStore, model ports.ModelPort, optCfg OptimizerConfig) *MemoryCore {
	profile := SelectProfile(contextWindow)
	working := NewWorkingMemory(profile, contextWindow, nil)
	optimizer := NewOptimizer(optCfg, estimator, episodic, model)

	return &MemoryCore{
		sessionID:     sessionID,
		profile:       profile,
		contextWindow: contextWindow,
		working:       working,
		optimizer:     optimizer,
		sessions:      sessions,
		checkpoints:   checkpoints,
	}
}

// Record appends a new operation to working memory. Call it once per
// prompt sent and once per response or validation result received.
func (m *MemoryCore) Record(op Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working.Append(op)
	m.opsSinceCheckpoint++
}

// UsagePct reports current working-memory token usage as a fraction of
// the context window, the input to the Context Window Manager's zone
// logic.
func (m *MemoryCore) UsagePct() float64 {
	return m.working.UsagePct()
}

// BuildContext renders working memory (after pruning, artifact
// replacement, external storage, differential state, and optional
// summarization) plus the session document into the string sent as the
// prompt prefix for the next AgentPort.Send call.
func (m *MemoryCore) BuildContext(ctx context.Context) (string, OptimizationResult, error) {
	m.mu.Lock()
	ops := m.working.Snapshot()
	m.mu.Unlock()

	doc, err := m.sessions.Load(ctx, m.sessionID)
	if err != nil {
		return "", OptimizationResult{}, fmt.Errorf("memorycore: load session document: %w", err)
	}
	return m.optimizer.BuildContext(ctx, ops, doc)
}

// ShouldCheckpoint reports whether the operation-count or
// usage-percentage triggers from the active profile have fired.
func (m *MemoryCore) ShouldCheckpoint() (bool, state.CheckpointTrigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opsSinceCheckpoint >= m.profile.CkptEveryOps {
		return true, state.TriggerOperationCount
	}
	if m.working.UsagePct() >= m.profile.CkptAtUsage {
		return true, state.TriggerThreshold
	}
	return false, ""
}

// Checkpoint snapshots working memory and the session document through
// the StatePort, then resets the operation counter.
func (m *MemoryCore) Checkpoint(ctx context.Context, trigger state.CheckpointTrigger, lastInteractionID string) (*state.Checkpoint, error) {
	doc, err := m.sessions.Load(ctx, m.sessionID)
	if err != nil {
		return nil, fmt.Errorf("memorycore: load session document for checkpoint: %w", err)
	}

	m.mu.Lock()
	cp, err := Checkpoint(ctx, m.checkpoints, m.sessionID, m.working, doc, trigger, lastInteractionID)
	if err == nil {
		m.opsSinceCheckpoint = 0
	}
	m.mu.Unlock()
	return cp, err
}

// RestoreLatest loads the most recent checkpoint for this session, if
// any, and replaces the working set and session document with it.
// Restoring twice in a row from the same checkpoint is a no-op: both
// calls converge on identical state (P7).
func (m *MemoryCore) RestoreLatest(ctx context.Context) error {
	cp, err := m.checkpoints.LatestCheckpoint(ctx, m.sessionID)
	if err != nil {
		return fmt.Errorf("memorycore: load latest checkpoint: %w", err)
	}
	if cp == nil {
		return nil
	}

	m.mu.Lock()
	doc, err := Restore(cp, m.working)
	m.opsSinceCheckpoint = 0
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if doc != nil {
		return m.sessions.Save(ctx, doc)
	}
	return nil
}

// SaveSessionSummary appends a milestone summary and updates the
// artifact registry, called by SessionManager at end_milestone_session.
func (m *MemoryCore) SaveSessionSummary(ctx context.Context, summary string, artifacts map[string]ArtifactRef) error {
	doc, err := m.sessions.Load(ctx, m.sessionID)
	if err != nil {
		return fmt.Errorf("memorycore: load session document: %w", err)
	}
	doc.Summaries = append(doc.Summaries, summary)
	if doc.Artifacts == nil {
		doc.Artifacts = make(map[string]ArtifactRef)
	}
	for path, ref := range artifacts {
		doc.Artifacts[path] = ref
	}
	return m.sessions.Save(ctx, doc)
}

// Profile reports the active adaptive optimizer profile.
func (m *MemoryCore) Profile() Profile { return m.profile }
