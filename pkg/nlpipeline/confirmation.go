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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/orchkit/pkg/state"
)

// ConfirmationTracker holds at most one PendingConfirmation per
// conversation id, in memory, following the teacher's
// mutex-guarded-map idiom used elsewhere for small per-process state.
type ConfirmationTracker struct {
	mu      sync.Mutex
	pending map[string]PendingConfirmation
	timeout time.Duration
	now     func() time.Time
}

func NewConfirmationTracker(timeout time.Duration) *ConfirmationTracker {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	return &ConfirmationTracker{
		pending: make(map[string]PendingConfirmation),
		timeout: timeout,
		now:     time.Now,
	}
}

// Set stores p as the pending confirmation for convID, replacing any
// previous one.
func (c *ConfirmationTracker) Set(convID string, p PendingConfirmation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[convID] = p
}

// Get returns the live (non-expired) pending confirmation for convID,
// clearing it from the tracker if it has expired.
func (c *ConfirmationTracker) Get(convID string) (PendingConfirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[convID]
	if !ok {
		return PendingConfirmation{}, false
	}
	if p.Expired(c.now(), c.timeout) {
		delete(c.pending, convID)
		return PendingConfirmation{}, false
	}
	return p, true
}

// Clear removes any pending confirmation for convID.
func (c *ConfirmationTracker) Clear(convID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, convID)
}

// confirmationPrompt renders the human-readable description of what a
// pending destructive operation will change. counts, when non-nil (a
// DELETE ALL with a live BulkCounter attached), replaces the generic
// entity-type listing with the actual per-tier row counts.
func confirmationPrompt(ctx OperationContext, counts *state.DeleteCounts) string {
	if ctx.Operation == OpDelete && ctx.Identifier == AllSentinel && counts != nil {
		return fmt.Sprintf("About to delete %s. Reply yes/confirm to proceed, no/cancel to abort.", counts.Describe())
	}

	var names []string
	for _, e := range ctx.EntityTypes {
		names = append(names, strings.ToLower(string(e)))
	}
	target := ctx.Identifier
	if target == AllSentinel {
		target = "all matching"
	}
	return fmt.Sprintf("About to %s %s %s. Reply yes/confirm to proceed, no/cancel to abort.",
		strings.ToLower(string(ctx.Operation)), target, strings.Join(names, ", "))
}

// requiresConfirmation reports whether ctx must be held as a pending
// confirmation before executing: every DELETE, plus UPDATE when
// confirmUpdates is enabled by configuration.
func requiresConfirmation(ctx OperationContext, confirmUpdates bool) bool {
	if ctx.Operation == OpDelete {
		return true
	}
	return ctx.Operation == OpUpdate && confirmUpdates
}
