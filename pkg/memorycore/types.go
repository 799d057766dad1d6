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

// Package memorycore keeps a small-context validator's (or the
// orchestrator's) context within budget while preserving enough
// information to resume work. It owns three tiers: working (in-process,
// recent operations), session (compact per-session document), and
// episodic (append-only, cross-session).
package memorycore

import "time"

// OperationKind classifies an entry in working memory for pruning and
// summarization decisions.
type OperationKind string

const (
	KindPrompt     OperationKind = "prompt"
	KindResponse   OperationKind = "response"
	KindDebug      OperationKind = "debug"
	KindTrace      OperationKind = "trace"
	KindValidation OperationKind = "validation"
	KindArtifact   OperationKind = "artifact"
	KindSummary    OperationKind = "summary"
)

// Operation is one opaque working-memory record.
type Operation struct {
	Kind      OperationKind
	Content   string
	Tokens    int
	Timestamp time.Time
}

// ArtifactRef replaces a large file body with a pointer: path, content
// hash, and a short human summary.
type ArtifactRef struct {
	Path    string
	Hash    string
	Summary string
}

// SessionDoc is the compact per-session document persisted by the
// Session tier: rolling summaries and the artifact registry mapping
// file path to last known hash/description. It holds no token-usage
// count.
type SessionDoc struct {
	SessionID string
	Summaries []string
	Artifacts map[string]ArtifactRef
	UpdatedAt time.Time
}

// EpisodicRecord is an append-only, versioned document retained across
// sessions for cross-milestone continuity.
type EpisodicRecord struct {
	ID        string
	ProjectID string
	Version   int
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// Zone is the context-window usage band.
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneYellow Zone = "yellow"
	ZoneOrange Zone = "orange"
	ZoneRed    Zone = "red"
)
