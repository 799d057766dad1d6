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

package memstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func TestTokenLedgerSumMatchesUsage(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateProject(ctx, "proj", "/tmp/proj")
	require.NoError(t, err)
	sess, err := s.CreateSessionRecord(ctx, p.ID, nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordTokenUsage(ctx, state.TokenLedgerEntry{SessionID: sess.ID, TotalTokens: 100}))
	require.NoError(t, s.RecordTokenUsage(ctx, state.TokenLedgerEntry{SessionID: sess.ID, TotalTokens: 50}))

	usage, err := s.GetSessionTokenUsage(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), usage)
}

func TestDependencyCycleRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")

	a, err := s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "A"})
	require.NoError(t, err)
	b, err := s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "B", Dependencies: []string{a.ID}})
	require.NoError(t, err)

	deps := []string{b.ID}
	_, err = s.UpdateWorkItem(ctx, a.ID, state.WorkItemUpdate{Dependencies: &deps})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestRunningRequiresCompletedDependencies(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")

	a, _ := s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "A"})
	b, _ := s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "B", Dependencies: []string{a.ID}})

	running := state.StatusRunning
	_, err := s.UpdateWorkItem(ctx, b.ID, state.WorkItemUpdate{Status: &running})
	require.Error(t, err)

	completed := state.StatusCompleted
	_, err = s.UpdateWorkItem(ctx, a.ID, state.WorkItemUpdate{Status: &completed})
	require.NoError(t, err)

	_, err = s.UpdateWorkItem(ctx, b.ID, state.WorkItemUpdate{Status: &running})
	assert.NoError(t, err)
}

func TestCascadingDeleteOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")

	epic, _ := s.CreateEpic(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "E"})
	story, _ := s.CreateStory(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "S", EpicID: &epic.ID})
	_, _ = s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "T", StoryID: &story.ID})

	counts, err := s.DeleteAllOf(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Epics)
	assert.Equal(t, 1, counts.Stories)
	assert.Equal(t, 1, counts.Tasks)
	assert.Equal(t, 3, counts.Total())

	items, err := s.ListWorkItems(ctx, state.ListOptions{ProjectID: p.ID, IncludeDeleted: false})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = s.ListWorkItems(ctx, state.ListOptions{ProjectID: p.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestSoftDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")
	task, _ := s.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "T"})

	require.NoError(t, s.DeleteWorkItem(ctx, task.ID, true))

	visible, _ := s.ListWorkItems(ctx, state.ListOptions{ProjectID: p.ID})
	assert.Empty(t, visible)

	all, _ := s.ListWorkItems(ctx, state.ListOptions{ProjectID: p.ID, IncludeDeleted: true})
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
}

func TestOnlyOneActiveSessionPerMilestone(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")
	milestone := "m1"

	_, err := s.CreateSessionRecord(ctx, p.ID, &milestone)
	require.NoError(t, err)

	_, err = s.CreateSessionRecord(ctx, p.ID, &milestone)
	assert.Error(t, err)
}

func TestSaveSessionSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.CreateProject(ctx, "proj", "/tmp/proj")
	sess, _ := s.CreateSessionRecord(ctx, p.ID, nil)

	require.NoError(t, s.SaveSessionSummary(ctx, sess.ID, "did the thing"))

	sessions, err := s.ListSessionsForMilestone(ctx, p.ID, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].Summary)
	assert.Equal(t, "did the thing", *sessions[0].Summary)
}
