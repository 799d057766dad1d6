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
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/orchkit/pkg/errs"
)

// rawParams is the intermediate shape a ModelPort-backed or lexical
// extractor fills in; mapstructure then decodes it into Params,
// skipping any key that is absent from the map entirely. A key present
// with a literal null value is rejected, never silently coerced to the
// zero value: that is precisely the "optional field omission, not
// nullification" bug this stage exists to prevent.
type rawParams map[string]any

var priorityPattern = regexp.MustCompile(`\bpriority\s*(?:=|:|\s)\s*(\d+)\b`)

// extractParams runs a cheap lexical pass over text and decodes the
// result through mapstructure so the same decode path used for a
// ModelPort-produced JSON blob is exercised for both sources.
func extractParams(text string) (Params, int, error) {
	raw := rawParams{}

	if title, ok := extractQuotedTitle(text); ok {
		raw["title"] = title
	}
	if m := priorityPattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			raw["priority"] = p
		}
	}

	for _, lit := range rawNullLiterals(text) {
		return Params{}, 0, errs.ValidationError("nlpipeline.extract_params", lit,
			fmt.Errorf("optional field %q must be omitted, not set to null", lit))
	}

	var out Params
	if err := mapstructure.Decode(raw, &out); err != nil {
		return Params{}, 0, errs.ValidationError("nlpipeline.extract_params", "", err)
	}

	confidence := 80
	if len(raw) == 0 {
		confidence = 100 // nothing claimed, nothing to get wrong
	}
	return out, confidence, nil
}

// rawNullLiterals is a defensive check for a future JSON-backed
// extractor: a ModelPort response that spells out `"priority": null`
// for an optional field is malformed per the parameter-extraction
// contract and must be rejected rather than decoded as a pointer reset.
func rawNullLiterals(text string) []string {
	var bad []string
	for _, field := range []string{"title", "description", "priority", "status", "epic_id", "story_id", "parent_task_id"} {
		if strings.Contains(text, fmt.Sprintf(`"%s": null`, field)) || strings.Contains(text, fmt.Sprintf(`"%s":null`, field)) {
			bad = append(bad, field)
		}
	}
	return bad
}

// validateOperation enforces per-operation required fields and graph
// constraints. It returns a (possibly empty) list of warnings that do
// not block execution, and an error for conditions that do.
func validateOperation(op Operation, entities []EntityType, identifier string, params Params) (warnings []string, err error) {
	hasEntity := func(e EntityType) bool {
		for _, x := range entities {
			if x == e {
				return true
			}
		}
		return false
	}

	if op == OpCreate && hasEntity(EntityStory) && params.EpicID == nil {
		warnings = append(warnings, "creating a story with no epic_id; it will be unattached")
	}

	for _, field := range requiredFieldsFor(op, entities) {
		switch field {
		case "identifier":
			if identifier == "" {
				return warnings, errs.ValidationError("nlpipeline.validate", "identifier",
					fmt.Errorf("%s requires a target id, title, or \"all\"", op))
			}
		case "title":
			if params.Title == nil {
				return warnings, errs.ValidationError("nlpipeline.validate", "title",
					fmt.Errorf("create requires a title"))
			}
		}
	}

	if params.Dependencies != nil {
		for _, dep := range params.Dependencies {
			if dep == "" {
				return warnings, errs.ValidationError("nlpipeline.validate", "dependencies",
					fmt.Errorf("dependency id must not be empty"))
			}
		}

		// Only the edges this very update proposes are visible here; the
		// full existing dependency graph is checked again at the store
		// layer (checkAcyclic). This still catches the direct case of an
		// item naming itself as its own dependency before it ever reaches
		// the store.
		if op == OpUpdate && identifier != "" {
			edges := map[string][]string{identifier: params.Dependencies}
			for _, dep := range params.Dependencies {
				if detectCircularDependency(edges, identifier, dep) {
					return warnings, errs.ValidationError("nlpipeline.validate", "dependencies",
						fmt.Errorf("dependency %q would create a cycle back to %q", dep, identifier))
				}
			}
		}
	}

	return warnings, nil
}

// detectCircularDependency reports whether adding candidate->target to
// the dependency graph closes a cycle, given the existing forward edges
// (id -> its dependencies). Used by the validator stage before an
// UPDATE that sets Dependencies is allowed through.
func detectCircularDependency(edges map[string][]string, candidate, target string) bool {
	visited := map[string]bool{}
	var walk func(id string) bool
	walk = func(id string) bool {
		if id == candidate {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, next := range edges[id] {
			if walk(next) {
				return true
			}
		}
		return false
	}
	return walk(target)
}

// requiredFieldsFor names the fields an operation's OperationContext
// must carry to be executable, used by the Validator stage.
func requiredFieldsFor(op Operation, entities []EntityType) []string {
	switch op {
	case OpDelete, OpUpdate:
		return []string{"identifier"}
	case OpCreate:
		for _, e := range entities {
			if e == EntityTask || e == EntitySubtask {
				return []string{"title"}
			}
		}
		return []string{"title"}
	default:
		return nil
	}
}
