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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/orchkit/pkg/state"
)

// checkpointArtifact is the opaque payload serialized into
// state.Checkpoint.Artifact. Restoring it must be idempotent (P7):
// restore(restore(cp)) == restore(cp), since it only ever replaces the
// in-memory working set and session document wholesale.
type checkpointArtifact struct {
	Operations []Operation `json:"operations"`
	Session    *SessionDoc `json:"session"`
}

// Checkpoint snapshots working memory and the session document, then
// persists it through the StatePort so it survives process restarts.
func Checkpoint(ctx context.Context, store state.CheckpointStore, sessionID string, wm *WorkingMemory, doc *SessionDoc, trigger state.CheckpointTrigger, lastInteractionID string) (*state.Checkpoint, error) {
	artifact := checkpointArtifact{
		Operations: wm.Snapshot(),
		Session:    doc,
	}
	raw, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("memorycore: marshal checkpoint artifact: %w", err)
	}

	cp := state.Checkpoint{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		CreatedAt:         time.Now().UTC(),
		Trigger:           trigger,
		Artifact:          raw,
		LastInteractionID: lastInteractionID,
	}
	return store.CreateCheckpoint(ctx, cp)
}

// Restore replaces wm's contents and returns the session document
// recorded in cp. Calling Restore twice with the same checkpoint
// produces the same working set both times: it never merges with
// whatever was present before the call.
func Restore(cp *state.Checkpoint, wm *WorkingMemory) (*SessionDoc, error) {
	var artifact checkpointArtifact
	if err := json.Unmarshal(cp.Artifact, &artifact); err != nil {
		return nil, fmt.Errorf("memorycore: unmarshal checkpoint artifact: %w", err)
	}
	wm.Replace(artifact.Operations)
	return artifact.Session, nil
}
