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
	"time"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) CreateCheckpoint(ctx context.Context, cp state.Checkpoint) (*state.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp.ID = newID()
	cp.CreatedAt = time.Now().UTC()
	stored := cp
	s.checkpoints[cp.ID] = &stored
	out := cp
	return &out, nil
}

func (s *Store) GetCheckpoint(ctx context.Context, id string) (*state.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, errs.StorageFault("get_checkpoint", errNotFound(id))
	}
	out := *cp
	return &out, nil
}

func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (*state.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *state.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.SessionID != sessionID {
			continue
		}
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
