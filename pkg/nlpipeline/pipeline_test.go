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

package nlpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/state/memstate"
)

func TestClassifyOperationSynonyms(t *testing.T) {
	cases := map[string]Operation{
		"please construct a new epic":  OpCreate,
		"spin up a task for this":      OpCreate,
		"tweak the priority":           OpUpdate,
		"purge this subtask":           OpDelete,
		"how many tasks are open":      OpQuery,
		"what is the status of story1": OpQuery,
	}
	for text, want := range cases {
		got, ok := classifyOperation(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}
}

func TestClassifyEntityTypesMultiEntity(t *testing.T) {
	got := classifyEntityTypes("delete all epics, stories and tasks")
	assert.ElementsMatch(t, []EntityType{EntityEpic, EntityStory, EntityTask}, got)
}

func TestExtractIdentifierBulkSentinel(t *testing.T) {
	id, conf := extractIdentifier("delete all subtasks")
	assert.Equal(t, AllSentinel, id)
	assert.GreaterOrEqual(t, conf, 95)
}

func TestExtractIdentifierInteger(t *testing.T) {
	id, conf := extractIdentifier("show task 42")
	assert.Equal(t, "42", id)
	assert.Greater(t, conf, 0)
}

func TestExtractParamsRejectsLiteralNull(t *testing.T) {
	_, _, err := extractParams(`update the task with "priority": null`)
	require.Error(t, err)
}

func TestExtractParamsOmitsAbsentFields(t *testing.T) {
	params, _, err := extractParams(`create a task called "fix login bug"`)
	require.NoError(t, err)
	require.NotNil(t, params.Title)
	assert.Equal(t, "fix login bug", *params.Title)
	assert.Nil(t, params.Priority)
	assert.Nil(t, params.Description)
}

func TestPipelineLowConfidenceAsksForClarification(t *testing.T) {
	p := New(Config{}, nil, nil)
	result := p.Process(context.Background(), "conv-1", "hmm maybe something")
	assert.Equal(t, ErrorNone, result.ErrorKind) // falls through to CONVERSATION, not a validation error
}

func TestPipelineAmbiguousTextYieldsLowConfidenceOrHelp(t *testing.T) {
	p := New(Config{}, nil, nil)
	result := p.Process(context.Background(), "conv-1", "do the thing")
	assert.Less(t, result.Confidence, AutoExecuteThreshold)
}

func TestPipelineHighConfidenceCreateAutoExecutes(t *testing.T) {
	p := New(Config{}, nil, nil)
	result := p.Process(context.Background(), "conv-1", `create a task called "write tests"`)
	require.NotNil(t, result.Operation)
	assert.Equal(t, OpCreate, result.Operation.Operation)
	assert.GreaterOrEqual(t, result.Confidence, AutoExecuteThreshold)
	assert.Nil(t, result.Pending)
}

func TestPipelineDeleteRequiresConfirmationThenExecutesOnYes(t *testing.T) {
	p := New(Config{}, nil, nil)
	first := p.Process(context.Background(), "conv-1", "delete task 7")
	require.NotNil(t, first.Pending)
	assert.Equal(t, OpDelete, first.Pending.Context.Operation)

	second := p.Process(context.Background(), "conv-1", "yes")
	require.NotNil(t, second.Operation)
	assert.Equal(t, OpDelete, second.Operation.Operation)
	assert.Equal(t, "7", second.Operation.Identifier)
}

func TestPipelineDeleteCancelledOnNo(t *testing.T) {
	p := New(Config{}, nil, nil)
	first := p.Process(context.Background(), "conv-1", "delete task 7")
	require.NotNil(t, first.Pending)

	second := p.Process(context.Background(), "conv-1", "no")
	assert.Equal(t, IntentCancellation, second.Intent)
	assert.Nil(t, second.Operation)
}

func TestPipelineOtherInputClearsPendingAndReprocesses(t *testing.T) {
	p := New(Config{}, nil, nil)
	first := p.Process(context.Background(), "conv-1", "delete task 7")
	require.NotNil(t, first.Pending)

	second := p.Process(context.Background(), "conv-1", `create a task called "something else"`)
	require.NotNil(t, second.Operation)
	assert.Equal(t, OpCreate, second.Operation.Operation)

	_, stillPending := p.tracker.Get("conv-1")
	assert.False(t, stillPending)
}

func TestConfirmationExpiresAfterTimeout(t *testing.T) {
	tracker := NewConfirmationTracker(10 * time.Millisecond)
	tracker.Set("conv-1", PendingConfirmation{
		Context:   OperationContext{Operation: OpDelete},
		CreatedAt: time.Now().Add(-time.Hour),
	})
	_, ok := tracker.Get("conv-1")
	assert.False(t, ok, "expired pending confirmation must not be returned")
}

func TestExecuteBulkDeleteCascadesThroughStore(t *testing.T) {
	store := memstate.New()
	ctx := context.Background()
	project, err := store.CreateProject(ctx, "orchkit", "/tmp")
	require.NoError(t, err)

	epic, err := store.CreateEpic(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "epic"})
	require.NoError(t, err)
	epicID := epic.ID
	_, err = store.CreateStory(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "story", EpicID: &epicID})
	require.NoError(t, err)

	counts, err := ExecuteBulkDelete(ctx, store, project.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Stories)
	assert.Equal(t, 1, counts.Epics)
}

func TestValidateOperationRejectsDeleteWithNoIdentifier(t *testing.T) {
	_, err := validateOperation(OpDelete, []EntityType{EntityTask}, "", Params{})
	require.Error(t, err)
}

func TestValidateOperationAllowsDeleteAllSentinel(t *testing.T) {
	_, err := validateOperation(OpDelete, []EntityType{EntityTask}, AllSentinel, Params{})
	require.NoError(t, err)
}

func TestValidateOperationRejectsUpdateWithNoIdentifier(t *testing.T) {
	_, err := validateOperation(OpUpdate, []EntityType{EntityTask}, "", Params{Priority: intPtr(2)})
	require.Error(t, err)
}

func TestValidateOperationRejectsCreateWithNoTitle(t *testing.T) {
	_, err := validateOperation(OpCreate, []EntityType{EntityTask}, "", Params{})
	require.Error(t, err)
}

func TestValidateOperationRejectsSelfDependency(t *testing.T) {
	_, err := validateOperation(OpUpdate, []EntityType{EntityTask}, "task-1", Params{Dependencies: []string{"task-1"}})
	require.Error(t, err)
}

func intPtr(n int) *int { return &n }

func TestPipelineDeleteAllUsesAttachedCounterInConfirmationPrompt(t *testing.T) {
	p := New(Config{}, nil, nil).WithCounter(func(ctx context.Context, entities []EntityType) (state.DeleteCounts, error) {
		return state.DeleteCounts{Tasks: 1, Stories: 1, Epics: 1}, nil
	})
	result := p.Process(context.Background(), "conv-1", "delete all tasks, stories and epics")
	require.NotNil(t, result.Pending)
	assert.Contains(t, result.ResponseText, "1 task, 1 story, 1 epic")
}

func TestProjectDeleteCountsMatchesStoreBeforeAnyDelete(t *testing.T) {
	store := memstate.New()
	ctx := context.Background()
	project, err := store.CreateProject(ctx, "orchkit", "/tmp")
	require.NoError(t, err)

	epic, err := store.CreateEpic(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "epic"})
	require.NoError(t, err)
	epicID := epic.ID
	_, err = store.CreateStory(ctx, state.NewWorkItem{ProjectID: project.ID, Title: "story", EpicID: &epicID})
	require.NoError(t, err)

	counts, err := ProjectDeleteCounts(ctx, store, project.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Stories)
	assert.Equal(t, 1, counts.Epics)

	// Nothing was actually deleted.
	items, err := store.ListWorkItems(ctx, state.ListOptions{ProjectID: project.ID, Variant: state.VariantEpic})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDetectCircularDependency(t *testing.T) {
	// a -> b -> c (a depends on b, b depends on c)
	edges := map[string][]string{
		"a": {"b"},
		"b": {"c"},
	}
	// Adding c -> a would close the cycle a -> b -> c -> a.
	assert.True(t, detectCircularDependency(edges, "c", "a"))
	// Adding z -> a introduces no cycle: nothing reachable from a leads to z.
	assert.False(t, detectCircularDependency(edges, "z", "a"))
}
