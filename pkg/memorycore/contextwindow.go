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

package memorycore

import "fmt"

// Thresholds gate the green/yellow/orange/red zones. Values are
// fractions of the context window; spec.md 6 requires
// 0 < warning < refresh < critical < 1, with refresh >= 0.70 and
// critical >= 0.85 (P8).
type Thresholds struct {
	Warning  float64
	Refresh  float64
	Critical float64
}

// DefaultThresholds matches spec.md 4.3's zone boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 0.50, Refresh: 0.70, Critical: 0.85}
}

// Validate enforces P8: warning < refresh < critical, refresh >= 0.70,
// critical >= 0.85.
func (t Thresholds) Validate() error {
	if !(0 < t.Warning && t.Warning < t.Refresh && t.Refresh < t.Critical && t.Critical < 1) {
		return fmt.Errorf("memorycore: thresholds must satisfy 0 < warning < refresh < critical < 1, got %+v", t)
	}
	if t.Refresh < 0.70 {
		return fmt.Errorf("memorycore: refresh threshold must be >= 0.70, got %v", t.Refresh)
	}
	if t.Critical < 0.85 {
		return fmt.Errorf("memorycore: critical threshold must be >= 0.85, got %v", t.Critical)
	}
	return nil
}

// ContextWindowManager classifies session usage into a Zone and tells
// the Orchestrator what to do about it.
type ContextWindowManager struct {
	Thresholds Thresholds
}

func NewContextWindowManager(t Thresholds) *ContextWindowManager {
	return &ContextWindowManager{Thresholds: t}
}

// Zone classifies usagePct (used tokens / context window) into a band.
// The Warning and Refresh boundaries belong to the upper zone: exactly
// at Refresh (0.70) the zone is orange (B4). The Critical boundary
// belongs to the lower zone: exactly at Critical (0.85) the zone is
// still orange, and red starts above it.
func (m *ContextWindowManager) Zone(usagePct float64) Zone {
	t := m.Thresholds
	switch {
	case usagePct > t.Critical:
		return ZoneRed
	case usagePct >= t.Refresh:
		return ZoneOrange
	case usagePct >= t.Warning:
		return ZoneYellow
	default:
		return ZoneGreen
	}
}

// ShouldRefuseNewCalls reports the red-zone rule: refuse new calls
// until a checkpoint and refresh have run.
func (m *ContextWindowManager) ShouldRefuseNewCalls(usagePct float64) bool {
	return m.Zone(usagePct) == ZoneRed
}

// ShouldRefreshBeforeNextCall reports the orange/red rule: create a
// checkpoint and refresh the session before the next outgoing call.
func (m *ContextWindowManager) ShouldRefreshBeforeNextCall(usagePct float64) bool {
	zone := m.Zone(usagePct)
	return zone == ZoneOrange || zone == ZoneRed
}

// ShouldApplyPruning reports the yellow-zone rule: apply pruning and
// the artifact registry on the next context build.
func (m *ContextWindowManager) ShouldApplyPruning(usagePct float64) bool {
	zone := m.Zone(usagePct)
	return zone == ZoneYellow || zone == ZoneOrange || zone == ZoneRed
}
