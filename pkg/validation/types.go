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

// Package validation implements the ValidationPipeline: response
// validator -> quality controller -> confidence scorer -> decision
// engine -> breakpoint manager, run in strict order on every
// implementer response.
package validation

import "github.com/kadirpekel/orchkit/pkg/state"

// ValidationRecord is the Response Validator's output. It is always
// passed as a full record downstream; collapsing it to a bare boolean
// is the historical bug this type exists to forbid.
type ValidationRecord struct {
	Valid    bool
	Complete bool
	Notes    []string
}

// Decision is the Decision Engine's output vocabulary, shared with
// state.Resolution so a Decision can resolve a Breakpoint directly.
type Decision string

const (
	DecisionProceed  Decision = "PROCEED"
	DecisionRetry    Decision = "RETRY"
	DecisionClarify  Decision = "CLARIFY"
	DecisionEscalate Decision = "ESCALATE"
	DecisionAbort    Decision = "ABORT"
)

// AsResolution maps a Decision onto the state package's Resolution
// vocabulary for persisting a Breakpoint's resolution.
func (d Decision) AsResolution() state.Resolution { return state.Resolution(d) }

// Config holds the floors and targets from spec.md 4.5 / 6's
// `validation` section. Defaults match the spec exactly.
type Config struct {
	QualityFloor                 int
	QualityTarget                int
	ConfidenceFloor               int
	ConfidenceTarget              int
	BreakpointConfidenceThreshold int
	BreakpointQualityFloor        int
	DestructiveOpPlanned          bool
	OperatorRequestedBreakpoint   bool
}

// DefaultConfig matches spec.md 4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		QualityFloor:                  50,
		QualityTarget:                 70,
		ConfidenceFloor:               30,
		ConfidenceTarget:              50,
		BreakpointConfidenceThreshold: 30,
		BreakpointQualityFloor:        40,
	}
}

// Input is everything one ValidationPipeline.Evaluate call needs.
type Input struct {
	Response          string
	IterationsLeft    int
	PriorTaskQuality  []int // recent quality scores for this task, most recent last
	ValidatorEstimate *int  // validator model's self-reported confidence, if available
}

// Output is the full per-stage record persisted onto the Interaction.
type Output struct {
	Validation     ValidationRecord
	Quality        int
	QualitySub     QualitySubscores
	Confidence     int
	Decision       Decision
	BreakpointHit  bool
	BreakpointWhy  state.BreakpointReason
}

// QualitySubscores are the required sub-scores from spec.md 4.5:
// "Requirements-satisfaction and error-freeness are required sub-scores."
type QualitySubscores struct {
	RequirementsSatisfaction int
	ErrorFreeness            int
}
