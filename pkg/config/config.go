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

// Package config loads the YAML key/value tree of spec.md 6 (agent,
// model, orchestration, context.thresholds, validation, nl,
// monitoring.production_logging) via koanf, following the teacher's
// koanf_loader.go layering of file/Consul/etcd providers. Invalid
// configuration is a hard startup error naming the offending key, the
// expected shape, and the actual value.
package config

import "time"

// AgentConfig is the `agent` section: the implementer's transport type
// and call envelope.
type AgentConfig struct {
	Type            string        `yaml:"type"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	Retries         int           `yaml:"retries"`
}

// ModelConfig is the `model` section: the validator model's identity
// and generation parameters.
type ModelConfig struct {
	Type          string  `yaml:"type"`
	ContextWindow int     `yaml:"context_window"`
	Temperature   float64 `yaml:"temperature"`
}

// MaxTurnsConfig is the `orchestration.max_turns` subsection.
type MaxTurnsConfig struct {
	Min             int     `yaml:"min"`
	Max             int     `yaml:"max"`
	Default         int     `yaml:"default"`
	RetryMultiplier float64 `yaml:"retry_multiplier"`
	MaxRetries      int     `yaml:"max_retries"`
	AutoRetry       bool    `yaml:"auto_retry"`
}

// OrchestrationConfig is the `orchestration` section.
type OrchestrationConfig struct {
	MaxIterations   int            `yaml:"max_iterations"`
	IterationTimeout time.Duration `yaml:"iteration_timeout"`
	MaxTurns        MaxTurnsConfig `yaml:"max_turns"`
}

// ContextThresholds is the `context.thresholds` section: the
// Context Window Manager's zone boundaries, fractions of the context
// window with 0 < warning < refresh < critical < 1.
type ContextThresholds struct {
	Warning  float64 `yaml:"warning"`
	Refresh  float64 `yaml:"refresh"`
	Critical float64 `yaml:"critical"`
}

// ContextConfig is the `context` section.
type ContextConfig struct {
	Thresholds ContextThresholds `yaml:"thresholds"`
}

// ValidationConfig is the `validation` section: floors and targets fed
// into the ValidationPipeline's Decision Engine and Breakpoint Manager.
type ValidationConfig struct {
	QualityFloor                  int `yaml:"quality_floor"`
	QualityTarget                  int `yaml:"quality_target"`
	ConfidenceFloor                int `yaml:"confidence_floor"`
	ConfidenceTarget                int `yaml:"confidence_target"`
	BreakpointConfidenceThreshold int `yaml:"breakpoint_confidence_threshold"`
}

// NLConfig is the `nl` section.
type NLConfig struct {
	ConfidenceThreshold    float64       `yaml:"confidence_threshold"`
	ConfirmationTimeout    time.Duration `yaml:"confirmation_timeout"`
	BulkRequireConfirmation bool         `yaml:"bulk_require_confirmation"`
}

// PrivacyConfig gates PII/secret redaction before a production log line
// is written.
type PrivacyConfig struct {
	RedactPII     bool `yaml:"redact_pii"`
	RedactSecrets bool `yaml:"redact_secrets"`
}

// RotationConfig bounds a single production-log file and how many
// rotated files are retained.
type RotationConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	MaxFiles      int `yaml:"max_files"`
}

// ProductionLoggingConfig is `monitoring.production_logging`.
type ProductionLoggingConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Path     string            `yaml:"path"`
	Events   map[string]bool   `yaml:"events"`
	Privacy  PrivacyConfig     `yaml:"privacy"`
	Rotation RotationConfig    `yaml:"rotation"`
}

// MonitoringConfig is the `monitoring` section.
type MonitoringConfig struct {
	ProductionLogging ProductionLoggingConfig `yaml:"production_logging"`
}

// Config is the full tree spec.md 6 requires.
type Config struct {
	Agent         AgentConfig         `yaml:"agent"`
	Model         ModelConfig         `yaml:"model"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Context       ContextConfig       `yaml:"context"`
	Validation    ValidationConfig    `yaml:"validation"`
	NL            NLConfig            `yaml:"nl"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
}

// Default returns a Config populated with every default named in
// spec.md 4 and 6.
func Default() Config {
	return Config{
		Agent: AgentConfig{Type: "subprocess", ResponseTimeout: 7200 * time.Second, Retries: 3},
		Model: ModelConfig{Type: "gemini", ContextWindow: 128_000, Temperature: 0.3},
		Orchestration: OrchestrationConfig{
			MaxIterations:    10,
			IterationTimeout: 2 * time.Hour,
			MaxTurns: MaxTurnsConfig{
				Min: 3, Max: 30, Default: 10, RetryMultiplier: 2.0, MaxRetries: 3, AutoRetry: true,
			},
		},
		Context: ContextConfig{Thresholds: ContextThresholds{Warning: 0.50, Refresh: 0.70, Critical: 0.85}},
		Validation: ValidationConfig{
			QualityFloor: 50, QualityTarget: 70, ConfidenceFloor: 30, ConfidenceTarget: 50,
			BreakpointConfidenceThreshold: 30,
		},
		NL: NLConfig{ConfidenceThreshold: 0.7, ConfirmationTimeout: 60 * time.Second, BulkRequireConfirmation: true},
		Monitoring: MonitoringConfig{ProductionLogging: ProductionLoggingConfig{
			Enabled: false,
			Rotation: RotationConfig{MaxFileSizeMB: 100, MaxFiles: 5},
			Privacy:  PrivacyConfig{RedactPII: true, RedactSecrets: true},
		}},
	}
}
