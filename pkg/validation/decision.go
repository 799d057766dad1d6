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

// DecisionEngine selects one of {PROCEED, RETRY, CLARIFY, ESCALATE,
// ABORT} from the current validation context. Rules are evaluated in
// the exact order of spec.md 4.5; the first match wins.
type DecisionEngine struct {
	Config Config
}

func NewDecisionEngine(cfg Config) *DecisionEngine { return &DecisionEngine{Config: cfg} }

func (e *DecisionEngine) Decide(validation ValidationRecord, quality, confidence, iterationsLeft int) Decision {
	cfg := e.Config

	if !validation.Valid {
		if iterationsLeft > 0 {
			return DecisionRetry
		}
		return DecisionEscalate
	}

	if quality < cfg.QualityFloor {
		if iterationsLeft > 0 {
			return DecisionRetry
		}
		return DecisionEscalate
	}

	if confidence < cfg.ConfidenceFloor {
		return DecisionClarify
	}

	if quality >= cfg.QualityTarget && confidence >= cfg.ConfidenceTarget {
		return DecisionProceed
	}

	// Otherwise: retry until iterations_left = 0, then escalate.
	if iterationsLeft > 0 {
		return DecisionRetry
	}
	return DecisionEscalate
}
