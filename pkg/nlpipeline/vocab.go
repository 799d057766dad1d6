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
	"regexp"
	"strings"
)

// operationVocab maps each Operation to its documented synonym set.
// Longer phrases are matched before single words so "set up" doesn't
// fall through to the bare "set" match under UPDATE.
var operationVocab = map[Operation][]string{
	OpCreate: {
		"create", "add", "make", "new", "build", "construct", "assemble",
		"craft", "generate", "produce", "develop", "establish", "initialize",
		"set up", "prepare", "design", "form", "start", "begin", "launch",
		"spin up", "put together",
	},
	OpUpdate: {
		"update", "modify", "change", "edit", "alter", "revise", "adjust",
		"refine", "amend", "correct", "fix", "set", "configure", "tweak",
	},
	OpDelete: {
		"delete", "remove", "drop", "erase", "clear", "purge", "eliminate",
		"destroy", "discard", "cancel", "archive",
	},
	OpQuery: {
		"show", "list", "get", "find", "search", "query", "lookup",
		"locate", "display", "view", "see", "check", "what", "which",
		"where", "who", "count", "how many", "status", "state", "info",
		"details", "describe",
	},
}

// entityVocab maps each entity type to the words that name it, singular
// and plural.
var entityVocab = map[EntityType][]string{
	EntityProject:   {"project", "projects"},
	EntityEpic:      {"epic", "epics"},
	EntityStory:     {"story", "stories"},
	EntityTask:      {"task", "tasks"},
	EntitySubtask:   {"subtask", "subtasks"},
	EntityMilestone: {"milestone", "milestones"},
}

// bulkKeywords trigger the __ALL__ identifier sentinel.
var bulkKeywords = []string{"all", "every", "each", "entire"}

var confirmWords = map[string]bool{
	"yes": true, "y": true, "confirm": true, "ok": true, "okay": true,
	"proceed": true, "go ahead": true,
}

var cancelWords = map[string]bool{
	"no": true, "n": true, "cancel": true, "abort": true, "stop": true,
	"nevermind": true, "never mind": true,
}

var wordBoundary = regexp.MustCompile(`[^a-z0-9]+`)

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func containsWord(haystack, needle string) bool {
	if strings.Contains(needle, " ") {
		return strings.Contains(haystack, needle)
	}
	for _, tok := range wordBoundary.Split(haystack, -1) {
		if tok == needle {
			return true
		}
	}
	return false
}

// classifyOperation returns the operation owning the longest phrase
// found in text, and true when any phrase matched, so multi-word idioms
// win over a shorter word they contain.
func classifyOperation(text string) (Operation, bool) {
	text = normalize(text)
	var best Operation
	bestLen := -1
	for op, phrases := range operationVocab {
		for _, phrase := range phrases {
			if containsWord(text, phrase) && len(phrase) > bestLen {
				best, bestLen = op, len(phrase)
			}
		}
	}
	return best, bestLen >= 0
}

// classifyEntityTypes returns every entity variant named in text,
// supporting multi-entity phrasing like "delete all epics, stories and
// tasks".
func classifyEntityTypes(text string) []EntityType {
	text = normalize(text)
	var found []EntityType
	for entity, words := range entityVocab {
		for _, w := range words {
			if containsWord(text, w) {
				found = append(found, entity)
				break
			}
		}
	}
	return found
}

func hasBulkKeyword(text string) bool {
	text = normalize(text)
	for _, w := range bulkKeywords {
		if containsWord(text, w) {
			return true
		}
	}
	return false
}

func isConfirmWord(text string) bool {
	return confirmWords[normalize(text)]
}

func isCancelWord(text string) bool {
	return cancelWords[normalize(text)]
}
