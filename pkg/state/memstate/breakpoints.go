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

func (s *Store) CreateBreakpoint(ctx context.Context, taskID string, reason state.BreakpointReason) (*state.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp := &state.Breakpoint{
		ID:          newID(),
		TaskID:      taskID,
		Reason:      reason,
		TriggeredAt: time.Now().UTC(),
	}
	s.breakpoints[bp.ID] = bp
	cp := *bp
	return &cp, nil
}

func (s *Store) ResolveBreakpoint(ctx context.Context, id string, resolution state.Resolution) (*state.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp, ok := s.breakpoints[id]
	if !ok {
		return nil, errs.StorageFault("resolve_breakpoint", errNotFound(id))
	}
	now := time.Now().UTC()
	bp.ResolvedAt = &now
	bp.Resolution = &resolution
	cp := *bp
	return &cp, nil
}

func (s *Store) GetUnresolvedBreakpoint(ctx context.Context, taskID string) (*state.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bp := range s.breakpoints {
		if bp.TaskID == taskID && bp.ResolvedAt == nil {
			cp := *bp
			return &cp, nil
		}
	}
	return nil, nil
}
