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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  type: subprocess
  retries: 5
orchestration:
  max_iterations: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Agent.Retries)
	require.Equal(t, 4, cfg.Orchestration.MaxIterations)
	// Untouched sections still carry their defaults.
	require.Equal(t, 128_000, cfg.Model.ContextWindow)
	require.Equal(t, 0.70, cfg.Context.Thresholds.Refresh)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  typo_field: subprocess
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var fe FieldError
	require.ErrorAs(t, err, &fe)
}

func TestValidateRejectsBadThresholdOrdering(t *testing.T) {
	cfg := Default()
	cfg.Context.Thresholds.Refresh = 0.40 // below warning
	err := Validate(&cfg)
	require.Error(t, err)
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "context.thresholds", fe.Field)
}

func TestValidateRejectsFloorAboveTarget(t *testing.T) {
	cfg := Default()
	cfg.Validation.QualityFloor = 90
	cfg.Validation.QualityTarget = 70
	err := Validate(&cfg)
	require.Error(t, err)
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "validation.quality_floor", fe.Field)
}

func TestValidateRejectsProductionLoggingEnabledWithoutPath(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.ProductionLogging.Enabled = true
	err := Validate(&cfg)
	require.Error(t, err)
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "monitoring.production_logging.path", fe.Field)
}

func TestLoadEmptyPathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), *cfg)
}
