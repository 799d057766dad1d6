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

package sqlstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/state"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, DialectSQLite, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(ctx) })
	return st
}

func TestSQLiteProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	p, err := st.CreateProject(ctx, "demo", "/srv/demo")
	require.NoError(t, err)
	assert.Equal(t, state.ProjectActive, p.Status)

	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestSQLiteCascadingDelete(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)
	p, _ := st.CreateProject(ctx, "demo", "/srv/demo")

	epic, err := st.CreateEpic(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "E"})
	require.NoError(t, err)
	story, err := st.CreateStory(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "S", EpicID: &epic.ID})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, state.NewWorkItem{ProjectID: p.ID, Title: "T", StoryID: &story.ID})
	require.NoError(t, err)

	counts, err := st.DeleteAllOf(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total())

	items, err := st.ListWorkItems(ctx, state.ListOptions{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSQLiteTokenLedgerSum(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)
	p, _ := st.CreateProject(ctx, "demo", "/srv/demo")
	sess, err := st.CreateSessionRecord(ctx, p.ID, nil)
	require.NoError(t, err)

	require.NoError(t, st.RecordTokenUsage(ctx, state.TokenLedgerEntry{SessionID: sess.ID, TotalTokens: 40}))
	require.NoError(t, st.RecordTokenUsage(ctx, state.TokenLedgerEntry{SessionID: sess.ID, TotalTokens: 60}))

	usage, err := st.GetSessionTokenUsage(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), usage)
}
