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

// Package sessionmgr owns implementer session lifecycle: starting a
// session for a milestone, summarizing and refreshing it mid-task when
// the context window runs low, and ending it when the milestone
// completes. It is the only authorized mutator of the AgentPort's
// session id (spec.md 5's shared-resource policy).
package sessionmgr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/orchkit/pkg/ports"
	"github.com/kadirpekel/orchkit/pkg/state"
)

const summaryMaxTokens = 1200

const summaryPrompt = `Summarize this implementer session in under %d tokens. Focus on:
- what was accomplished
- key decisions made
- current code state
- open issues
- next steps

Do not include chain-of-thought, internal deliberation, or secrets. Content only.

Session transcript:
%s`

// Manager implements the SessionManager responsibilities of spec.md 4.7.
type Manager struct {
	store  state.SessionStore
	ledger state.LedgerStore
	model  ports.ModelPort
	logger *slog.Logger
}

func New(store state.SessionStore, ledger state.LedgerStore, model ports.ModelPort, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, ledger: ledger, model: model, logger: logger}
}

// EnsureSession returns the current ACTIVE session for (projectID,
// milestoneID), creating one if none exists. Exactly one ACTIVE session
// exists per (project, milestone) at any time (P5); StartMilestoneSession
// and this method share the same underlying StatePort guarantee.
func (m *Manager) EnsureSession(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	active, err := m.store.GetActiveSession(ctx, projectID, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("sessionmgr: get active session: %w", err)
	}
	if active != nil {
		return active, nil
	}
	return m.StartMilestoneSession(ctx, projectID, milestoneID)
}

// StartMilestoneSession creates a new ACTIVE session row for the given
// milestone and assigns its id as the one the orchestrator should pass
// to AgentPort.Send for the duration of the milestone.
func (m *Manager) StartMilestoneSession(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	session, err := m.store.CreateSessionRecord(ctx, projectID, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("sessionmgr: create session record: %w", err)
	}
	m.logger.Info("started milestone session", "session_id", session.ID, "project_id", projectID)
	return session, nil
}

// EndMilestoneSession summarizes sessionID via the ModelPort into a
// compact synopsis, persists it, and marks the session COMPLETED.
// MilestoneID is not preserved by an end (only a refresh preserves it).
func (m *Manager) EndMilestoneSession(ctx context.Context, sessionID, transcript string) (string, error) {
	summary, err := m.summarize(ctx, transcript)
	if err != nil {
		return "", fmt.Errorf("sessionmgr: summarize session %s: %w", sessionID, err)
	}
	if err := m.store.SaveSessionSummary(ctx, sessionID, summary); err != nil {
		return "", fmt.Errorf("sessionmgr: save summary: %w", err)
	}
	if err := m.store.CompleteSessionRecord(ctx, sessionID); err != nil {
		return "", fmt.Errorf("sessionmgr: complete session: %w", err)
	}
	m.logger.Info("ended milestone session", "session_id", sessionID)
	return summary, nil
}

// BuildMilestoneContext assembles the project header, the previous
// milestone's summary (if any), and the current milestone header into
// the string the Orchestrator prepends to every prompt.
func (m *Manager) BuildMilestoneContext(ctx context.Context, project *state.Project, milestoneID *string) (string, error) {
	header := fmt.Sprintf("Project: %s\nWorking directory: %s\n", project.Name, project.WorkingDirectory)

	sessions, err := m.store.ListSessionsForMilestone(ctx, project.ID, milestoneID)
	if err != nil {
		return "", fmt.Errorf("sessionmgr: list sessions for milestone: %w", err)
	}
	var previousSummary string
	for _, s := range sessions {
		if s.Summary != nil && *s.Summary != "" {
			previousSummary = *s.Summary
		}
	}

	out := header
	if previousSummary != "" {
		out += "\nPrevious session summary:\n" + previousSummary + "\n"
	}
	if milestoneID != nil {
		out += fmt.Sprintf("\nCurrent milestone: %s\n", *milestoneID)
	}
	return out, nil
}

// RefreshSessionWithSummary is called by the Orchestrator when the
// Context Window Manager enters the orange zone. It summarizes the
// outgoing session, opens a new one against the same milestone, and
// marks the old one REFRESHED with its summary stored. MilestoneID is
// preserved across a refresh, unlike an end.
func (m *Manager) RefreshSessionWithSummary(ctx context.Context, current *state.Session, transcript string) (*state.Session, string, error) {
	summary, err := m.summarize(ctx, transcript)
	if err != nil {
		return nil, "", fmt.Errorf("sessionmgr: summarize outgoing session: %w", err)
	}

	if err := m.store.MarkRefreshed(ctx, current.ID, summary); err != nil {
		return nil, "", fmt.Errorf("sessionmgr: mark session refreshed: %w", err)
	}

	next, err := m.store.CreateSessionRecord(ctx, current.ProjectID, current.MilestoneID)
	if err != nil {
		return nil, "", fmt.Errorf("sessionmgr: create successor session: %w", err)
	}

	m.logger.Info("refreshed session", "old_session_id", current.ID, "new_session_id", next.ID)
	return next, summary, nil
}

// RecordUsage appends entry to the token ledger. Cache-read tokens are
// expected to already be excluded from entry.TotalTokens by the caller;
// they never count toward context-window usage (spec.md 3).
func (m *Manager) RecordUsage(ctx context.Context, entry state.TokenLedgerEntry) error {
	if err := m.ledger.RecordTokenUsage(ctx, entry); err != nil {
		return fmt.Errorf("sessionmgr: record token usage: %w", err)
	}
	return nil
}

// TokenUsage returns the authoritative used-tokens count for sessionID,
// the TokenLedger sum (P1).
func (m *Manager) TokenUsage(ctx context.Context, sessionID string) (int64, error) {
	return m.ledger.GetSessionTokenUsage(ctx, sessionID)
}

func (m *Manager) summarize(ctx context.Context, transcript string) (string, error) {
	if m.model == nil {
		return truncateForSummary(transcript), nil
	}
	prompt := fmt.Sprintf(summaryPrompt, summaryMaxTokens, transcript)
	summary, err := m.model.Generate(ctx, prompt, summaryMaxTokens, 0.3)
	if err != nil {
		return "", err
	}
	return summary, nil
}

// truncateForSummary is the no-ModelPort fallback: a crude character
// cap standing in for a real summary so refresh/end still produce a
// non-empty bridge.
func truncateForSummary(transcript string) string {
	const approxCharsPerToken = 4
	limit := summaryMaxTokens * approxCharsPerToken
	if len(transcript) <= limit {
		return transcript
	}
	return transcript[len(transcript)-limit:]
}
