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
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orchkit/pkg/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestProductionSinkRedactsAndFilters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchkit.log")
	cfg := config.ProductionLoggingConfig{
		Enabled: true,
		Path:    path,
		Events:  map[string]bool{"decision_made": true},
		Privacy: config.PrivacyConfig{RedactPII: true, RedactSecrets: true},
		Rotation: config.RotationConfig{MaxFileSizeMB: 1, MaxFiles: 3},
	}
	sink, err := NewProductionSink(cfg)
	require.NoError(t, err)
	logger := slog.New(sink)

	logger.Info("decision made", "event", "decision_made", "note", "api_key=sk-abc123 contact me@example.com")
	logger.Info("dropped event", "event", "response_received")
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1, "only the opted-in event should reach the file")
	note, _ := lines[0]["note"].(string)
	require.Contains(t, note, "[REDACTED]")
	require.Contains(t, note, "[REDACTED_EMAIL]")
	require.NotContains(t, note, "sk-abc123")
	require.NotContains(t, note, "me@example.com")
}

func TestProductionSinkRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchkit.log")
	cfg := config.ProductionLoggingConfig{
		Enabled:  true,
		Path:     path,
		Rotation: config.RotationConfig{MaxFileSizeMB: 0, MaxFiles: 2},
	}
	// MaxFileSizeMB of 0 disables rotation by rotateIfNeededLocked's
	// maxBytes<=0 guard, so use the smallest nonzero threshold (1 MB)
	// and write a single 2 MB record past it.
	cfg.Rotation.MaxFileSizeMB = 1
	sink, err := NewProductionSink(cfg)
	require.NoError(t, err)
	logger := slog.New(sink)

	big := make([]byte, 2*1024*1024)
	for i := range big {
		big[i] = 'a'
	}
	logger.Info(string(big))
	logger.Info("after rotation")
	require.NoError(t, sink.Close())

	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "oldest file should have been rotated to .1")
}
