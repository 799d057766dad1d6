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

// Package turnbudget picks an agent turn budget proportional to task
// complexity before the orchestrator calls the agent.
package turnbudget

import (
	"log/slog"
	"strconv"
	"strings"
)

// Bounds clamp every computed budget. Defaults match spec.md 4.4.
type Bounds struct {
	Min int
	Max int
}

func DefaultBounds() Bounds { return Bounds{Min: 3, Max: 30} }

func (b Bounds) clamp(n int) int {
	if n < b.Min {
		return b.Min
	}
	if n > b.Max {
		return b.Max
	}
	return n
}

// perTypeDefaults are the recognized task_type overrides, rule 1.
var perTypeDefaults = map[string]int{
	"validation":      5,
	"planning":        5,
	"documentation":   3,
	"error_analysis":  8,
	"testing":         8,
	"code_generation": 12,
	"refactoring":     15,
	"debugging":       20,
}

var complexityWords = []string{
	"migrate", "refactor", "implement", "debug", "comprehensive", "entire",
	"all", "complete", "full", "across", "multiple", "system", "architecture",
	"framework",
}

var scopeIndicators = []string{
	"all files", "entire codebase", "multiple", "across", "throughout",
	"repository", "project-wide", "every",
}

// Task carries the signals TurnBudgeter needs. TaskType is optional;
// when empty or unrecognized, the vocabulary-based rules apply.
type Task struct {
	TaskType       string
	Title          string
	Description    string
	EstimatedFiles int
	EstimatedLOC   int
}

// Result is the computed budget plus the rationale used to reach it,
// so the Orchestrator can log it next to the value for auditability.
type Result struct {
	MaxTurns  int
	Rationale string
}

// Budgeter computes Task turn budgets. DefaultTurns is rule 3's "configured
// default" fallback (spec.md 4.4 step 3, "otherwise -> configured default (10)").
type Budgeter struct {
	Bounds       Bounds
	DefaultTurns int
	Logger       *slog.Logger
}

// New returns a Budgeter with spec defaults (bounds 3..30, default 10).
func New(logger *slog.Logger) *Budgeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Budgeter{Bounds: DefaultBounds(), DefaultTurns: 10, Logger: logger}
}

// Retry computes the next max_turns after an exit_reason = MAX_TURNS
// result, multiplying by multiplier (spec.md 6's retry_multiplier,
// typically 2.0 to match 4.8's "double max_turns") and clamping to
// Bounds.Max (B2).
func (b *Budgeter) Retry(current int, multiplier float64) int {
	bounds := b.Bounds
	if bounds.Max == 0 {
		bounds = DefaultBounds()
	}
	next := int(float64(current) * multiplier)
	return bounds.clamp(next)
}

func countMatches(text string, vocab []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, word := range vocab {
		if strings.Contains(lower, word) {
			count++
		}
	}
	return count
}

// Calculate applies the priority-ordered rules of spec.md 4.4 and
// returns the clamped budget with its rationale.
func (b *Budgeter) Calculate(task Task) Result {
	bounds := b.Bounds
	if bounds.Max == 0 {
		bounds = DefaultBounds()
	}

	// Rule 1: recognized task_type default.
	if task.TaskType != "" {
		if n, ok := perTypeDefaults[strings.ToLower(task.TaskType)]; ok {
			clamped := bounds.clamp(n)
			res := Result{
				MaxTurns:  clamped,
				Rationale: "task_type=" + task.TaskType + " matched a per-type default",
			}
			b.log(task, res)
			return res
		}
	}

	// Rule 2/3: vocabulary-scored fallback.
	text := task.Title + " " + task.Description
	complexity := countMatches(text, complexityWords)
	scope := countMatches(text, scopeIndicators)

	var n int
	var why string
	switch {
	case task.EstimatedLOC > 500 || scope >= 2:
		n, why = 20, "estimated_loc>500 or scope>=2 (very complex)"
	case complexity == 0 && scope == 0 && task.EstimatedFiles <= 1:
		n, why = 3, "no complexity/scope signals, <=1 file (simple)"
	case complexity <= 1 && scope == 0 && task.EstimatedFiles <= 3:
		n, why = 6, "low complexity, no scope, <=3 files (medium)"
	case complexity <= 2 && scope == 1 && task.EstimatedFiles <= 8:
		n, why = 12, "moderate complexity and scope, <=8 files (complex)"
	default:
		n, why = b.DefaultTurns, "no rule matched, configured default"
	}

	clamped := bounds.clamp(n)
	res := Result{
		MaxTurns: clamped,
		Rationale: why +
			" (complexity=" + strconv.Itoa(complexity) + ", scope=" + strconv.Itoa(scope) +
			", files=" + strconv.Itoa(task.EstimatedFiles) + ")",
	}
	b.log(task, res)
	return res
}

func (b *Budgeter) log(task Task, res Result) {
	if b.Logger == nil {
		return
	}
	b.Logger.Info("turn budget computed",
		"task_type", task.TaskType,
		"max_turns", res.MaxTurns,
		"rationale", res.Rationale,
	)
}
