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

package sessionmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/state/memstate"
)

func newTestProject(t *testing.T, store *memstate.Store) *state.Project {
	t.Helper()
	p, err := store.CreateProject(context.Background(), "orchkit", "/tmp/orchkit")
	require.NoError(t, err)
	return p
}

func TestEnsureSessionCreatesOnlyOnce(t *testing.T) {
	store := memstate.New()
	mgr := New(store, store, nil, nil)
	ctx := context.Background()
	project := newTestProject(t, store)
	milestoneID := "milestone-1"

	first, err := mgr.EnsureSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)

	second, err := mgr.EnsureSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "EnsureSession must reuse the existing ACTIVE session (P5)")
}

func TestRefreshSessionPreservesMilestoneAndDeactivatesOld(t *testing.T) {
	store := memstate.New()
	mgr := New(store, store, nil, nil)
	ctx := context.Background()
	project := newTestProject(t, store)
	milestoneID := "milestone-1"

	original, err := mgr.StartMilestoneSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)

	next, summary, err := mgr.RefreshSessionWithSummary(ctx, original, "did some work, made progress")
	require.NoError(t, err)
	require.NotEmpty(t, summary)
	require.NotEqual(t, original.ID, next.ID)
	require.NotNil(t, next.MilestoneID)
	require.Equal(t, milestoneID, *next.MilestoneID)

	active, err := store.GetActiveSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)
	require.Equal(t, next.ID, active.ID, "only the successor session should be ACTIVE after refresh (S4)")
}

func TestEndMilestoneSessionSavesSummaryThenCompletes(t *testing.T) {
	store := memstate.New()
	mgr := New(store, store, nil, nil)
	ctx := context.Background()
	project := newTestProject(t, store)
	milestoneID := "milestone-1"

	session, err := mgr.StartMilestoneSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)

	summary, err := mgr.EndMilestoneSession(ctx, session.ID, "finished the milestone work")
	require.NoError(t, err)
	require.NotEmpty(t, summary)

	active, err := store.GetActiveSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)
	require.Nil(t, active, "ending a session must leave no ACTIVE session behind")
}

func TestBuildMilestoneContextIncludesPreviousSummary(t *testing.T) {
	store := memstate.New()
	mgr := New(store, store, nil, nil)
	ctx := context.Background()
	project := newTestProject(t, store)
	milestoneID := "milestone-1"

	session, err := mgr.StartMilestoneSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)
	_, err = mgr.EndMilestoneSession(ctx, session.ID, "completed the login flow, added unit tests")
	require.NoError(t, err)

	out, err := mgr.BuildMilestoneContext(ctx, project, &milestoneID)
	require.NoError(t, err)
	require.Contains(t, out, project.Name)
	require.Contains(t, out, "Previous session summary")
	require.Contains(t, out, milestoneID)
}

func TestRecordAndReadTokenUsage(t *testing.T) {
	store := memstate.New()
	mgr := New(store, store, nil, nil)
	ctx := context.Background()
	project := newTestProject(t, store)
	milestoneID := "milestone-1"

	session, err := mgr.StartMilestoneSession(ctx, project.ID, &milestoneID)
	require.NoError(t, err)

	err = mgr.RecordUsage(ctx, state.TokenLedgerEntry{
		SessionID:   session.ID,
		InputTokens: 100,
		TotalTokens: 100,
	})
	require.NoError(t, err)
	err = mgr.RecordUsage(ctx, state.TokenLedgerEntry{
		SessionID:   session.ID,
		InputTokens: 50,
		TotalTokens: 50,
	})
	require.NoError(t, err)

	total, err := mgr.TokenUsage(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, int64(150), total, "TokenUsage must be the ledger sum (P1)")
}
