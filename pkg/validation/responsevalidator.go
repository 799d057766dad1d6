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

import "strings"

// expectedSections is a minimal structural checklist: a response that
// claims to describe work done should say what changed and why. This
// is a heuristic floor, not a grammar.
var expectedSections = []string{"summary", "change", "file", "test"}

// ResponseValidator checks the agent response for structural
// completeness: non-empty, expected sections present, code fences
// balanced.
type ResponseValidator struct{}

func NewResponseValidator() *ResponseValidator { return &ResponseValidator{} }

func (v *ResponseValidator) Validate(response string) ValidationRecord {
	var notes []string
	trimmed := strings.TrimSpace(response)

	if trimmed == "" {
		return ValidationRecord{Valid: false, Complete: false, Notes: []string{"response is empty"}}
	}

	fenceCount := strings.Count(response, "```")
	if fenceCount%2 != 0 {
		notes = append(notes, "unbalanced code fence")
	}

	lower := strings.ToLower(response)
	found := 0
	for _, section := range expectedSections {
		if strings.Contains(lower, section) {
			found++
		}
	}
	complete := found >= 2 && fenceCount%2 == 0
	if found < 2 {
		notes = append(notes, "missing expected narrative sections (summary/changes/files/tests)")
	}

	valid := fenceCount%2 == 0 && trimmed != ""
	return ValidationRecord{Valid: valid, Complete: complete, Notes: notes}
}
