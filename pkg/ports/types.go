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

// Package ports declares the AgentPort and ModelPort capability
// interfaces: the boundary between the orchestrator core and the
// external implementer agent / validator model. The core never
// inspects transport details; concrete transports (subprocess, SSH,
// HTTP, out-of-process plugin) live behind these interfaces.
package ports

import "time"

// ExitReason classifies how an AgentPort.Send call ended.
type ExitReason string

const (
	ExitOK            ExitReason = "OK"
	ExitMaxTurns      ExitReason = "MAX_TURNS"
	ExitTimeout       ExitReason = "TIMEOUT"
	ExitInternalError ExitReason = "INTERNAL_ERROR"
	ExitSessionLocked ExitReason = "SESSION_LOCKED"
)

// Transient reports whether a retry is worth attempting for this exit
// reason, per spec.md 7 ("retried ... when the fault is transient
// (reason in {TIMEOUT, SESSION_LOCKED, INTERNAL_ERROR})").
func (r ExitReason) Transient() bool {
	switch r {
	case ExitTimeout, ExitSessionLocked, ExitInternalError:
		return true
	default:
		return false
	}
}

// CallContext carries per-call parameters into AgentPort.Send.
type CallContext struct {
	SessionID        string
	MaxTurns         int
	WorkingDirectory string
	Timeout          time.Duration
}

// AgentResult is the structured outcome of one AgentPort.Send call.
// Every field here must reach the caller intact: the historical bug of
// collapsing it to a bare success boolean is exactly what this struct
// exists to prevent.
type AgentResult struct {
	Text                string
	InputTokens         int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	OutputTokens        int64
	TurnsUsed           int
	DurationMS          int64
	ExitReason          ExitReason
}

// TotalBillableTokens sums every token field that counts toward the
// context window (cache-read tokens are explicitly excluded per
// spec.md 3's TokenLedgerEntry definition).
func (r AgentResult) TotalBillableTokens() int64 {
	return r.InputTokens + r.CacheCreationTokens + r.OutputTokens
}
