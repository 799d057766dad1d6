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
	"fmt"
	"sort"
	"time"

	"github.com/kadirpekel/orchkit/pkg/errs"
	"github.com/kadirpekel/orchkit/pkg/state"
)

func sameMilestone(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Store) CreateSessionRecord(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.ProjectID == projectID && existing.Status == state.SessionActive && sameMilestone(existing.MilestoneID, milestoneID) {
			return nil, errs.StorageFault("create_session_record",
				fmt.Errorf("an ACTIVE session already exists for this project/milestone"))
		}
	}

	sess := &state.Session{
		ID:          newID(),
		ProjectID:   projectID,
		MilestoneID: milestoneID,
		StartedAt:   time.Now().UTC(),
		Status:      state.SessionActive,
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

func (s *Store) CompleteSessionRecord(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errs.StorageFault("complete_session_record", errNotFound(sessionID))
	}
	now := time.Now().UTC()
	sess.EndedAt = &now
	sess.Status = state.SessionCompleted
	return nil
}

func (s *Store) SaveSessionSummary(ctx context.Context, sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errs.StorageFault("save_session_summary", errNotFound(sessionID))
	}
	sess.Summary = &summary
	return nil
}

func (s *Store) ListSessionsForMilestone(ctx context.Context, projectID string, milestoneID *string) ([]*state.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*state.Session, 0)
	for _, sess := range s.sessions {
		if sess.ProjectID != projectID || !sameMilestone(sess.MilestoneID, milestoneID) {
			continue
		}
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) GetActiveSession(ctx context.Context, projectID string, milestoneID *string) (*state.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.ProjectID == projectID && sess.Status == state.SessionActive && sameMilestone(sess.MilestoneID, milestoneID) {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

// MarkRefreshed moves sessionID to REFRESHED with the given summary.
// Unlike SaveSessionSummary + CompleteSessionRecord, it does not set
// EndedAt: a refreshed session is superseded, not ended.
func (s *Store) MarkRefreshed(ctx context.Context, sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errs.StorageFault("mark_refreshed", errNotFound(sessionID))
	}
	sess.Summary = &summary
	sess.Status = state.SessionRefreshed
	return nil
}
