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

package validation

import "github.com/kadirpekel/orchkit/pkg/state"

// BreakpointManager runs after the Decision Engine. A breakpoint
// supersedes the decision: the task pauses until the breakpoint is
// resolved, and resolution maps back onto a Decision.
type BreakpointManager struct {
	Config Config
}

func NewBreakpointManager(cfg Config) *BreakpointManager { return &BreakpointManager{Config: cfg} }

// Evaluate checks the configured breakpoint rules in priority order and
// reports whether one triggered, and why.
func (m *BreakpointManager) Evaluate(validation ValidationRecord, quality, confidence int) (bool, state.BreakpointReason) {
	cfg := m.Config

	if !validation.Valid {
		return true, state.ReasonValidationFailed
	}
	if confidence < cfg.BreakpointConfidenceThreshold {
		return true, state.ReasonLowConfidence
	}
	if quality < cfg.BreakpointQualityFloor {
		return true, state.ReasonQualityBelowFloor
	}
	if cfg.DestructiveOpPlanned {
		return true, state.ReasonDestructiveOp
	}
	if cfg.OperatorRequestedBreakpoint {
		return true, state.ReasonExplicitRequest
	}
	return false, ""
}
