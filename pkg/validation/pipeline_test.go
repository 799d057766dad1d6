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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionInvalidRetriesThenEscalates(t *testing.T) {
	e := NewDecisionEngine(DefaultConfig())
	invalid := ValidationRecord{Valid: false}

	assert.Equal(t, DecisionRetry, e.Decide(invalid, 80, 80, 2))
	assert.Equal(t, DecisionEscalate, e.Decide(invalid, 80, 80, 0))
}

func TestDecisionQualityBelowFloor(t *testing.T) {
	e := NewDecisionEngine(DefaultConfig())
	valid := ValidationRecord{Valid: true}

	assert.Equal(t, DecisionRetry, e.Decide(valid, 10, 80, 3))
	assert.Equal(t, DecisionEscalate, e.Decide(valid, 10, 80, 0))
}

func TestDecisionLowConfidenceClarifies(t *testing.T) {
	e := NewDecisionEngine(DefaultConfig())
	valid := ValidationRecord{Valid: true}

	assert.Equal(t, DecisionClarify, e.Decide(valid, 60, 10, 3))
}

func TestDecisionProceedsWhenBothMeetTarget(t *testing.T) {
	e := NewDecisionEngine(DefaultConfig())
	valid := ValidationRecord{Valid: true}

	assert.Equal(t, DecisionProceed, e.Decide(valid, 70, 50, 3))
}

func TestDecisionMiddleBandRetriesThenEscalates(t *testing.T) {
	e := NewDecisionEngine(DefaultConfig())
	valid := ValidationRecord{Valid: true}

	// quality=60 (>=floor, <target), confidence=40 (>=floor, <target).
	assert.Equal(t, DecisionRetry, e.Decide(valid, 60, 40, 1))
	assert.Equal(t, DecisionEscalate, e.Decide(valid, 60, 40, 0))
}

func TestBreakpointPriorityValidationBeforeConfidence(t *testing.T) {
	cfg := DefaultConfig()
	m := NewBreakpointManager(cfg)

	triggered, reason := m.Evaluate(ValidationRecord{Valid: false}, 80, 10)
	assert.True(t, triggered)
	assert.Equal(t, "VALIDATION_FAILED", string(reason))
}

func TestBreakpointLowConfidence(t *testing.T) {
	cfg := DefaultConfig()
	m := NewBreakpointManager(cfg)

	triggered, reason := m.Evaluate(ValidationRecord{Valid: true}, 80, 10)
	assert.True(t, triggered)
	assert.Equal(t, "LOW_CONFIDENCE", string(reason))
}

func TestBreakpointNoneTriggered(t *testing.T) {
	cfg := DefaultConfig()
	m := NewBreakpointManager(cfg)

	triggered, _ := m.Evaluate(ValidationRecord{Valid: true}, 80, 80)
	assert.False(t, triggered)
}

func TestResponseValidatorEmptyIsInvalid(t *testing.T) {
	v := NewResponseValidator()
	rec := v.Validate("")
	assert.False(t, rec.Valid)
	assert.False(t, rec.Complete)
}

func TestResponseValidatorUnbalancedFences(t *testing.T) {
	v := NewResponseValidator()
	rec := v.Validate("Summary: did things.\n```go\nfunc main() {}\n")
	assert.False(t, rec.Valid)
}
