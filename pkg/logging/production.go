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

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/kadirpekel/orchkit/pkg/config"
)

// eventKey is the attribute key a caller sets to the eventbus.Type
// name of the record being emitted, so ProductionSink can filter by
// monitoring.production_logging.events.
const eventKey = "event"

var (
	secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer)\s*[:=]\s*\S+`)
	piiPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// productionSinkState is the file/rotation state shared by a
// ProductionSink and every clone WithAttrs/WithGroup produces; cloning
// must never copy the mutex itself, only the pointer to this struct.
type productionSinkState struct {
	mu   sync.Mutex
	cfg  config.ProductionLoggingConfig
	file *os.File
	size int64
}

// ProductionSink is a slog.Handler that writes newline-delimited JSON
// to a rotating file, redacting secrets and PII before each write and
// dropping records for events the configuration did not opt into.
type ProductionSink struct {
	state  *productionSinkState
	attrs  []slog.Attr
	groups []string
}

// NewProductionSink opens (creating if needed) the configured log
// file and returns a handler ready to be wrapped with WithProduction.
func NewProductionSink(cfg config.ProductionLoggingConfig) (*ProductionSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("logging: production sink requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", cfg.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &ProductionSink{state: &productionSinkState{cfg: cfg, file: f, size: info.Size()}}, nil
}

func (s *ProductionSink) Close() error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.file.Close()
}

func (s *ProductionSink) Enabled(_ context.Context, _ slog.Level) bool {
	return s.state.cfg.Enabled
}

func (s *ProductionSink) Handle(_ context.Context, record slog.Record) error {
	privacy := s.state.cfg.Privacy
	line := map[string]any{
		"time":    record.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"level":   record.Level.String(),
		"message": redact(record.Message, privacy),
	}
	for _, a := range s.attrs {
		addAttr(line, a, privacy)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(line, a, privacy)
		return true
	})

	eventName, _ := line[eventKey].(string)
	if len(s.state.cfg.Events) > 0 && eventName != "" && !s.state.cfg.Events[eventName] {
		return nil
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("logging: marshal production record: %w", err)
	}
	encoded = append(encoded, '\n')

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if err := s.state.rotateIfNeededLocked(int64(len(encoded))); err != nil {
		return err
	}
	n, err := s.state.file.Write(encoded)
	s.state.size += int64(n)
	return err
}

// rotateIfNeededLocked renames the current file to a numbered suffix
// once it would exceed the configured size, shifting older numbered
// files up and dropping the oldest beyond max_files. Caller holds mu.
func (s *productionSinkState) rotateIfNeededLocked(nextWrite int64) error {
	maxBytes := int64(s.cfg.Rotation.MaxFileSizeMB) * 1024 * 1024
	if maxBytes <= 0 || s.size+nextWrite <= maxBytes {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("logging: close before rotation: %w", err)
	}

	maxFiles := s.cfg.Rotation.MaxFiles
	if maxFiles < 1 {
		maxFiles = 1
	}
	oldest := fmt.Sprintf("%s.%d", s.cfg.Path, maxFiles-1)
	_ = os.Remove(oldest)
	for i := maxFiles - 2; i >= 0; i-- {
		from := s.cfg.Path
		if i > 0 {
			from = fmt.Sprintf("%s.%d", s.cfg.Path, i)
		}
		to := fmt.Sprintf("%s.%d", s.cfg.Path, i+1)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, to)
		}
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("logging: reopen after rotation: %w", err)
	}
	s.file = f
	s.size = 0
	return nil
}

func (s *ProductionSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ProductionSink{
		state:  s.state,
		attrs:  append(append([]slog.Attr{}, s.attrs...), attrs...),
		groups: s.groups,
	}
}

func (s *ProductionSink) WithGroup(name string) slog.Handler {
	return &ProductionSink{
		state:  s.state,
		attrs:  s.attrs,
		groups: append(append([]string{}, s.groups...), name),
	}
}

func addAttr(line map[string]any, a slog.Attr, privacy config.PrivacyConfig) {
	if a.Key == "" {
		return
	}
	switch a.Value.Kind() {
	case slog.KindString:
		line[a.Key] = redact(a.Value.String(), privacy)
	default:
		line[a.Key] = a.Value.Any()
	}
}

func redact(s string, privacy config.PrivacyConfig) string {
	if privacy.RedactSecrets {
		s = secretPattern.ReplaceAllString(s, "$1=[REDACTED]")
	}
	if privacy.RedactPII {
		s = piiPattern.ReplaceAllString(s, "[REDACTED_EMAIL]")
	}
	return s
}
