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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/state"
	"github.com/kadirpekel/orchkit/pkg/state/memstate"
)

func TestSelectProfile(t *testing.T) {
	cases := []struct {
		window int
		name   string
	}{
		{4_000, "ultra-aggressive"},
		{8_000, "aggressive"},
		{32_000, "aggressive"},
		{64_000, "balanced-aggressive"},
		{200_000, "balanced"},
		{1_000_000, "minimal"},
	}
	for _, c := range cases {
		got := SelectProfile(c.window)
		assert.Equal(t, c.name, got.Name, "window=%d", c.window)
	}
}

func TestContextWindowManagerZoneBoundaries(t *testing.T) {
	m := NewContextWindowManager(DefaultThresholds())

	assert.Equal(t, ZoneGreen, m.Zone(0.49))
	assert.Equal(t, ZoneYellow, m.Zone(0.50))
	assert.Equal(t, ZoneYellow, m.Zone(0.69))
	// B4: exactly at the refresh threshold (0.70), the zone is orange (inclusive).
	assert.Equal(t, ZoneOrange, m.Zone(0.70))
	assert.Equal(t, ZoneOrange, m.Zone(0.84))
	assert.Equal(t, ZoneRed, m.Zone(0.86))

	assert.True(t, m.ShouldRefreshBeforeNextCall(0.70))
	assert.False(t, m.ShouldRefreshBeforeNextCall(0.69))
	assert.True(t, m.ShouldRefuseNewCalls(0.86))
	assert.False(t, m.ShouldRefuseNewCalls(0.84))
	assert.True(t, m.ShouldApplyPruning(0.50))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := Thresholds{Warning: 0.5, Refresh: 0.6, Critical: 0.8}
	assert.Error(t, bad.Validate(), "refresh below 0.70 must be rejected")

	bad2 := Thresholds{Warning: 0.5, Refresh: 0.75, Critical: 0.80}
	assert.Error(t, bad2.Validate(), "critical below 0.85 must be rejected")

	bad3 := Thresholds{Warning: 0.8, Refresh: 0.7, Critical: 0.9}
	assert.Error(t, bad3.Validate(), "warning must be less than refresh")
}

func TestWorkingMemoryEvictsOldestFirst(t *testing.T) {
	profile := Profile{Name: "test", MaxOperations: 3, MaxTokensPct: 1.0}
	var evicted []Operation
	wm := NewWorkingMemory(profile, 10_000, func(op Operation) {
		evicted = append(evicted, op)
	})

	for i := 0; i < 5; i++ {
		wm.Append(Operation{Kind: KindPrompt, Content: "op", Tokens: 1})
	}

	assert.Equal(t, 3, wm.Len())
	require.Len(t, evicted, 2)
}

func TestWorkingMemoryEvictsOnTokenBudget(t *testing.T) {
	profile := Profile{Name: "test", MaxOperations: 1000, MaxTokensPct: 0.10}
	wm := NewWorkingMemory(profile, 1000, nil) // budget = 100 tokens

	for i := 0; i < 20; i++ {
		wm.Append(Operation{Kind: KindResponse, Content: "x", Tokens: 10})
	}

	assert.LessOrEqual(t, wm.Len(), 10)
	assert.LessOrEqual(t, wm.UsagePct(), 0.10)
}

func TestCheckpointRestoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstate.New()

	profile := Profile{Name: "test", MaxOperations: 100, MaxTokensPct: 1.0}
	wm := NewWorkingMemory(profile, 100_000, nil)
	wm.Append(Operation{Kind: KindPrompt, Content: "hello", Tokens: 5})
	wm.Append(Operation{Kind: KindResponse, Content: "world", Tokens: 5})

	doc := &SessionDoc{
		SessionID: "sess-1",
		Summaries: []string{"did a thing"},
		Artifacts: map[string]ArtifactRef{"a.go": {Path: "a.go", Hash: "abc", Summary: "file"}},
		UpdatedAt: time.Now().UTC(),
	}

	cp, err := Checkpoint(ctx, store, "sess-1", wm, doc, state.TriggerManual, "interaction-1")
	require.NoError(t, err)
	require.NotNil(t, cp)

	// Mutate working memory after the checkpoint to prove restore replaces
	// wholesale rather than merging.
	wm.Append(Operation{Kind: KindDebug, Content: "noise", Tokens: 1})
	assert.Equal(t, 3, wm.Len())

	restoredDoc1, err := Restore(cp, wm)
	require.NoError(t, err)
	firstSnapshot := wm.Snapshot()

	restoredDoc2, err := Restore(cp, wm)
	require.NoError(t, err)
	secondSnapshot := wm.Snapshot()

	assert.Equal(t, firstSnapshot, secondSnapshot, "restoring the same checkpoint twice must converge on identical state")
	assert.Equal(t, restoredDoc1, restoredDoc2)
	assert.Equal(t, doc.Summaries, restoredDoc1.Summaries)
	assert.Len(t, firstSnapshot, 2)
}

func TestMemoryCoreBuildContextCompresses(t *testing.T) {
	ctx := context.Background()
	store := memstate.New()
	sessions := NewInMemorySessionStore()
	estimator := NewEstimator("")

	mc := New("sess-compress", 32_000, estimator, nil, sessions, store, nil, DefaultOptimizerConfig())

	for i := 0; i < 5; i++ {
		mc.Record(Operation{Kind: KindDebug, Content: "trace line that nobody needs", Tokens: 20, Timestamp: time.Now().UTC().Add(-2 * time.Hour)})
	}
	mc.Record(Operation{Kind: KindPrompt, Content: "please implement the feature", Tokens: 20})
	mc.Record(Operation{Kind: KindResponse, Content: "implemented", Tokens: 20})

	out, result, err := mc.BuildContext(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.GreaterOrEqual(t, result.InputTokens, result.OutputTokens)
}

func TestMemoryCoreCheckpointAndRestoreLatest(t *testing.T) {
	ctx := context.Background()
	store := memstate.New()
	sessions := NewInMemorySessionStore()
	estimator := NewEstimator("")

	mc := New("sess-ckpt", 32_000, estimator, nil, sessions, store, nil, DefaultOptimizerConfig())
	mc.Record(Operation{Kind: KindPrompt, Content: "task one", Tokens: 10})

	_, err := mc.Checkpoint(ctx, state.TriggerManual, "interaction-1")
	require.NoError(t, err)

	mc.Record(Operation{Kind: KindResponse, Content: "extra after checkpoint", Tokens: 10})
	require.NoError(t, mc.RestoreLatest(ctx))
	require.NoError(t, mc.RestoreLatest(ctx))
}
