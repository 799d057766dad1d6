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

// Package memstate is an in-memory state.Port implementation. It is the
// reference implementation used by unit tests across the orchestrator
// (SessionManager, ValidationPipeline, Orchestrator) that need a real
// StatePort without a database, following the teacher's
// sync.RWMutex-guarded in-memory service idiom.
package memstate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

// Store is a single-process, mutex-guarded state.Port. All writes
// acquire the single exclusive lock; this satisfies "single writer,
// many readers" trivially since reads also take the same lock (RWMutex
// would allow concurrent reads, but the transactional multi-table
// invariants here are simplest under one lock).
type Store struct {
	mu sync.Mutex

	projects     map[string]*state.Project
	workItems    map[string]*state.WorkItem
	sessions     map[string]*state.Session
	ledger       []state.TokenLedgerEntry
	interactions []*state.Interaction
	breakpoints  map[string]*state.Breakpoint
	checkpoints  map[string]*state.Checkpoint
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		projects:    make(map[string]*state.Project),
		workItems:   make(map[string]*state.WorkItem),
		sessions:    make(map[string]*state.Session),
		breakpoints: make(map[string]*state.Breakpoint),
		checkpoints: make(map[string]*state.Checkpoint),
	}
}

func newID() string { return uuid.NewString() }

// --- ProjectStore ---

func (s *Store) CreateProject(ctx context.Context, name, workingDirectory string) (*state.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := &state.Project{
		ID:               newID(),
		Name:             name,
		WorkingDirectory: workingDirectory,
		Status:           state.ProjectActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*state.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errs.StorageFault("get_project", errNotFound(id))
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProjects(ctx context.Context, includeDeleted bool) ([]*state.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*state.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if p.IsDeleted && !includeDeleted {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, updates state.ProjectUpdate) (*state.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errs.StorageFault("update_project", errNotFound(id))
	}
	if updates.Name != nil {
		p.Name = *updates.Name
	}
	if updates.Status != nil {
		p.Status = *updates.Status
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (s *Store) SoftDeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return errs.StorageFault("soft_delete_project", errNotFound(id))
	}
	p.IsDeleted = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}
