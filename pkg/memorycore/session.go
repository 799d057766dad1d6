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
	"sync"
	"time"
)

// SessionMemoryStore persists the compact per-session document: rolling
// summaries and the artifact registry (no token usage). It is
// deliberately separate from state.SessionStore, which tracks the
// session's lifecycle (status, milestone, timestamps) rather than its
// memory content.
type SessionMemoryStore interface {
	Load(ctx context.Context, sessionID string) (*SessionDoc, error)
	Save(ctx context.Context, doc *SessionDoc) error
}

// InMemorySessionStore is the default SessionMemoryStore backend, used
// by single-process deployments and by tests. A durable deployment can
// swap in a store backed by the same state.Port database instead.
type InMemorySessionStore struct {
	mu   sync.Mutex
	docs map[string]*SessionDoc
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{docs: make(map[string]*SessionDoc)}
}

func (s *InMemorySessionStore) Load(ctx context.Context, sessionID string) (*SessionDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[sessionID]
	if !ok {
		return &SessionDoc{SessionID: sessionID, Artifacts: make(map[string]ArtifactRef)}, nil
	}
	clone := *doc
	clone.Artifacts = make(map[string]ArtifactRef, len(doc.Artifacts))
	for k, v := range doc.Artifacts {
		clone.Artifacts[k] = v
	}
	clone.Summaries = append([]string(nil), doc.Summaries...)
	return &clone, nil
}

func (s *InMemorySessionStore) Save(ctx context.Context, doc *SessionDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.UpdatedAt = time.Now().UTC()
	clone := *doc
	clone.Artifacts = make(map[string]ArtifactRef, len(doc.Artifacts))
	for k, v := range doc.Artifacts {
		clone.Artifacts[k] = v
	}
	clone.Summaries = append([]string(nil), doc.Summaries...)
	s.docs[doc.SessionID] = &clone
	return nil
}
