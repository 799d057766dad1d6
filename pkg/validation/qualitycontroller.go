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
	"fmt"
	"strconv"
	"strings"

	"github.com/kadirpekel/orchkit/pkg/ports"
)

const rubricPrompt = `Rate the following implementer response from 0 to 100 on two axes:
requirements_satisfaction (did it do what was asked) and error_freeness (is it
free of obvious mistakes). Reply with exactly two integers separated by a
space, nothing else.

RESPONSE:
%s`

// QualityController assigns an integer quality score 0-100 using
// rubric-based heuristics and, when a ModelPort is available, a rubric
// prompt. Requirements-satisfaction and error-freeness are required
// sub-scores.
type QualityController struct {
	Model ports.ModelPort
}

func NewQualityController(model ports.ModelPort) *QualityController {
	return &QualityController{Model: model}
}

// Score returns the combined quality score and its two required
// sub-scores. When a ModelPort is configured, its rubric verdict
// replaces the heuristic sub-scores; on any model failure the
// heuristic result is used instead (quality scoring must never hard
// fail the pipeline because a slow validator had a bad second).
func (q *QualityController) Score(ctx context.Context, response string, validation ValidationRecord) (int, QualitySubscores) {
	heuristic := heuristicSubscores(response, validation)

	if q.Model == nil {
		return combine(heuristic), heuristic
	}

	reply, err := q.Model.Generate(ctx, fmt.Sprintf(rubricPrompt, response), 16, 0.0)
	if err != nil {
		return combine(heuristic), heuristic
	}
	sub, ok := parseRubricReply(reply)
	if !ok {
		return combine(heuristic), heuristic
	}
	return combine(sub), sub
}

func combine(sub QualitySubscores) int {
	return (sub.RequirementsSatisfaction + sub.ErrorFreeness) / 2
}

func heuristicSubscores(response string, validation ValidationRecord) QualitySubscores {
	req := 40
	if validation.Complete {
		req = 80
	}
	if strings.Contains(strings.ToLower(response), "todo") {
		req -= 10
	}

	errFree := 90
	errFree -= 20 * len(validation.Notes)
	if !validation.Valid {
		errFree -= 30
	}

	return QualitySubscores{
		RequirementsSatisfaction: clampScore(req),
		ErrorFreeness:            clampScore(errFree),
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func parseRubricReply(reply string) (QualitySubscores, bool) {
	fields := strings.Fields(strings.TrimSpace(reply))
	if len(fields) < 2 {
		return QualitySubscores{}, false
	}
	req, err1 := strconv.Atoi(fields[0])
	errF, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return QualitySubscores{}, false
	}
	return QualitySubscores{RequirementsSatisfaction: clampScore(req), ErrorFreeness: clampScore(errF)}, true
}
