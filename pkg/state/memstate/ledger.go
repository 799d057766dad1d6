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

	"github.com/kadirpekel/orchkit/pkg/state"
)

func (s *Store) AppendInteraction(ctx context.Context, in state.Interaction) (*state.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = newID()
	s.interactions = append(s.interactions, &in)
	cp := in
	return &cp, nil
}

// RecordTokenUsage appends entry to the ledger. Because Store serializes
// every call under a single lock, the running sum returned by
// GetSessionTokenUsage can never observe a torn write: this call and
// any subsequent read of the same session are strictly ordered.
func (s *Store) RecordTokenUsage(ctx context.Context, entry state.TokenLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = newID()
	s.ledger = append(s.ledger, entry)
	if sess, ok := s.sessions[entry.SessionID]; ok {
		sess.TotalTokens += entry.TotalTokens
		sess.TotalTurns++
	}
	return nil
}

func (s *Store) GetSessionTokenUsage(ctx context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, e := range s.ledger {
		if e.SessionID == sessionID {
			total += e.TotalTokens
		}
	}
	return total, nil
}

func (s *Store) ListInteractions(ctx context.Context, taskID string) ([]*state.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*state.Interaction, 0)
	for _, in := range s.interactions {
		if in.TaskID == taskID {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}
