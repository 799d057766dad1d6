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
	"context"

	"github.com/kadirpekel/orchkit/pkg/ports"
)

// Pipeline runs the ValidationPipeline's five stages in strict order.
// Each stage may short-circuit the ones logically downstream of it by
// shaping their inputs, but every stage still records its inputs and
// outputs on the returned Output (which the Orchestrator persists onto
// the Interaction row).
type Pipeline struct {
	Validator  *ResponseValidator
	Quality    *QualityController
	Confidence *ConfidenceScorer
	Decision   *DecisionEngine
	Breakpoint *BreakpointManager
}

// New builds a Pipeline from Config and an optional validator ModelPort
// (used only by the QualityController's rubric stage).
func New(cfg Config, model ports.ModelPort) *Pipeline {
	return &Pipeline{
		Validator:  NewResponseValidator(),
		Quality:    NewQualityController(model),
		Confidence: NewConfidenceScorer(),
		Decision:   NewDecisionEngine(cfg),
		Breakpoint: NewBreakpointManager(cfg),
	}
}

// Evaluate runs every stage in order and returns the full structured
// record.
func (p *Pipeline) Evaluate(ctx context.Context, in Input) Output {
	validation := p.Validator.Validate(in.Response)
	quality, subscores := p.Quality.Score(ctx, in.Response, validation)
	confidence := p.Confidence.Score(validation, quality, in.PriorTaskQuality, in.ValidatorEstimate)
	decision := p.Decision.Decide(validation, quality, confidence, in.IterationsLeft)
	triggered, reason := p.Breakpoint.Evaluate(validation, quality, confidence)

	return Output{
		Validation:    validation,
		Quality:       quality,
		QualitySub:    subscores,
		Confidence:    confidence,
		Decision:      decision,
		BreakpointHit: triggered,
		BreakpointWhy: reason,
	}
}
