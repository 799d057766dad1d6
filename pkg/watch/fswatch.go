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

package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher is a Watcher backed by fsnotify. It watches every
// directory under each root recursively, adding newly created
// subdirectories as they appear.
type FSWatcher struct {
	logger  *slog.Logger
	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewFSWatcher builds an FSWatcher. logger may be nil.
func NewFSWatcher(logger *slog.Logger) (*FSWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FSWatcher{logger: logger, watcher: w}, nil
}

func (f *FSWatcher) Watch(ctx context.Context, roots []string) (<-chan ChangeEvent, error) {
	for _, root := range roots {
		if err := f.addRecursive(root); err != nil {
			return nil, err
		}
	}

	out := make(chan ChangeEvent, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.watcher.Events:
				if !ok {
					return
				}
				event, ok := f.toChangeEvent(ev)
				if !ok {
					continue
				}
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := f.addRecursive(ev.Name); err != nil {
							f.logger.Warn("watch: add new directory", "path", ev.Name, "error", err)
						}
					}
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			case err, ok := <-f.watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("watch: fsnotify error", "error", err)
			}
		}
	}()
	return out, nil
}

func (f *FSWatcher) toChangeEvent(ev fsnotify.Event) (ChangeEvent, bool) {
	var kind ChangeKind
	switch {
	case ev.Op.Has(fsnotify.Create):
		kind = ChangeCreated
	case ev.Op.Has(fsnotify.Write):
		kind = ChangeModified
	case ev.Op.Has(fsnotify.Remove):
		kind = ChangeRemoved
	case ev.Op.Has(fsnotify.Rename):
		kind = ChangeRenamed
	default:
		return ChangeEvent{}, false
	}

	hash := ""
	if kind != ChangeRemoved {
		if h, err := hashFile(ev.Name); err == nil {
			hash = h
		}
	}
	return ChangeEvent{Path: ev.Name, Kind: kind, Hash: hash, Timestamp: time.Now()}, true
}

func (f *FSWatcher) addRecursive(root string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return f.watcher.Add(path)
		}
		return nil
	})
}

func (f *FSWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watcher.Close()
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
