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

// Package watch defines the file-change watcher contract of spec.md
// 1 (§Non-goals: only the contract is specified; fswatch.go supplies
// the one concrete, optional implementation built on fsnotify).
package watch

import (
	"context"
	"time"
)

// ChangeKind classifies what happened to a watched path.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
	ChangeRenamed  ChangeKind = "renamed"
)

// ChangeEvent is emitted for every observed filesystem change. Hash is
// the content hash after the change (empty for ChangeRemoved); it is
// what session memory's artifact registry keys on to detect drift
// between what an agent last reported and what's actually on disk.
type ChangeEvent struct {
	Path      string
	Kind      ChangeKind
	Hash      string
	Timestamp time.Time
}

// Watcher observes a set of root paths and emits ChangeEvents until
// the supplied context is cancelled or Close is called.
type Watcher interface {
	// Watch begins observing roots (files or directories, watched
	// recursively) and returns a channel of ChangeEvents. The channel
	// is closed when ctx is cancelled or the watcher is closed.
	Watch(ctx context.Context, roots []string) (<-chan ChangeEvent, error)

	// Close releases underlying OS resources (inotify/kqueue handles).
	// Safe to call more than once.
	Close() error
}
