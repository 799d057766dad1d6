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
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// FieldError names one invalid key: what was expected there, and what
// was actually found.
type FieldError struct {
	Field    string
	Expected string
	Actual   string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config: invalid key %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// strictDecode rejects unknown/misspelled keys in raw by attempting a
// decode into Config with ErrorUnused set, surfacing the first offense
// as a FieldError rather than koanf's generic decode error.
func strictDecode(raw map[string]any) error {
	var discard Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &discard,
		ErrorUnused:      true,
		TagName:          "yaml",
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("config: build strict decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return FieldError{
			Field:    "(see below)",
			Expected: "a key recognized by the orchkit config schema",
			Actual:   err.Error(),
		}
	}
	return nil
}

// Validate checks semantic constraints the struct tags cannot express:
// threshold ordering, floor/target ordering, and turn bounds. It
// returns a FieldError naming the offending key, its expected shape,
// and its actual value, per the first violation found.
func Validate(cfg *Config) error {
	t := cfg.Context.Thresholds
	if !(0 < t.Warning && t.Warning < t.Refresh && t.Refresh < t.Critical && t.Critical < 1) {
		return FieldError{
			Field:    "context.thresholds",
			Expected: "0 < warning < refresh < critical < 1",
			Actual:   fmt.Sprintf("warning=%v refresh=%v critical=%v", t.Warning, t.Refresh, t.Critical),
		}
	}

	v := cfg.Validation
	if v.QualityFloor > v.QualityTarget {
		return FieldError{
			Field:    "validation.quality_floor",
			Expected: "<= validation.quality_target",
			Actual:   fmt.Sprintf("floor=%d target=%d", v.QualityFloor, v.QualityTarget),
		}
	}
	if v.ConfidenceFloor > v.ConfidenceTarget {
		return FieldError{
			Field:    "validation.confidence_floor",
			Expected: "<= validation.confidence_target",
			Actual:   fmt.Sprintf("floor=%d target=%d", v.ConfidenceFloor, v.ConfidenceTarget),
		}
	}

	mt := cfg.Orchestration.MaxTurns
	if !(mt.Min > 0 && mt.Min <= mt.Default && mt.Default <= mt.Max) {
		return FieldError{
			Field:    "orchestration.max_turns",
			Expected: "0 < min <= default <= max",
			Actual:   fmt.Sprintf("min=%d default=%d max=%d", mt.Min, mt.Default, mt.Max),
		}
	}
	if mt.RetryMultiplier <= 1.0 {
		return FieldError{
			Field:    "orchestration.max_turns.retry_multiplier",
			Expected: "> 1.0",
			Actual:   fmt.Sprintf("%v", mt.RetryMultiplier),
		}
	}

	if cfg.Orchestration.MaxIterations <= 0 {
		return FieldError{
			Field:    "orchestration.max_iterations",
			Expected: "> 0",
			Actual:   fmt.Sprintf("%d", cfg.Orchestration.MaxIterations),
		}
	}

	if cfg.Monitoring.ProductionLogging.Enabled && cfg.Monitoring.ProductionLogging.Path == "" {
		return FieldError{
			Field:    "monitoring.production_logging.path",
			Expected: "a non-empty file path when enabled is true",
			Actual:   "\"\"",
		}
	}
	if r := cfg.Monitoring.ProductionLogging.Rotation; r.MaxFileSizeMB <= 0 || r.MaxFiles <= 0 {
		return FieldError{
			Field:    "monitoring.production_logging.rotation",
			Expected: "max_file_size_mb > 0 and max_files > 0",
			Actual:   fmt.Sprintf("max_file_size_mb=%d max_files=%d", r.MaxFileSizeMB, r.MaxFiles),
		}
	}

	return nil
}
