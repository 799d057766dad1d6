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
	"strconv"
	"strings"
)

var helpWords = []string{"help", "what can you do", "how do i", "commands"}

// classifyIntent is a fast lexical pass; ambiguous or conversational
// input that matches none of the sharper categories falls through to
// CONVERSATION with reduced confidence, which the caller folds into
// the overall min() so a weak intent read never silently becomes a
// confident command.
func classifyIntent(text string, hasPending bool) (Intent, int) {
	norm := normalize(text)

	if hasPending {
		if isConfirmWord(norm) {
			return IntentConfirmation, 100
		}
		if isCancelWord(norm) {
			return IntentCancellation, 100
		}
	}

	for _, w := range helpWords {
		if containsWord(norm, w) {
			return IntentHelp, 95
		}
	}

	if _, ok := classifyOperation(norm); ok {
		return IntentCommand, 90
	}

	if len(classifyEntityTypes(norm)) > 0 {
		return IntentQuery, 70
	}

	return IntentConversation, 40
}

var integerIDPattern = regexp.MustCompile(`\b\d+\b`)

// extractIdentifier returns (identifier, confidence). A bulk keyword
// resolves to AllSentinel at >=0.95 confidence only, per spec; an
// explicit integer id or quoted/bare title otherwise.
func extractIdentifier(text string) (string, int) {
	if hasBulkKeyword(text) {
		return AllSentinel, 96
	}
	if m := integerIDPattern.FindString(text); m != "" {
		if _, err := strconv.Atoi(m); err == nil {
			return m, 90
		}
	}
	if title, ok := extractQuotedTitle(text); ok {
		return title, 85
	}
	return "", 20
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

func extractQuotedTitle(text string) (string, bool) {
	m := quotedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// ScopeCurrentProject is the default scope whenever the sentence does
// not name another project explicitly.
const ScopeCurrentProject = "current_project"

func extractScope(text string) string {
	norm := normalize(text)
	if strings.Contains(norm, "in project") || strings.Contains(norm, "for project") {
		return norm
	}
	return ScopeCurrentProject
}
