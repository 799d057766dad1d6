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

package ports

import (
	"context"
	"fmt"
)

// AgentPort sends a prompt to the implementer agent and receives a
// structured response. Implementations must not retain state outside
// the session id passed in CallContext: restarts are allowed between
// calls.
type AgentPort interface {
	Send(ctx context.Context, prompt string, call CallContext) (AgentResult, error)

	// Name identifies the concrete agent implementation (e.g. "claude-code",
	// "aider").
	Name() string
}

// ModelPort is the validator model: a single synchronous generation
// call that may take seconds. It is used by the ValidationPipeline for
// quality rubrics and by SessionManager for end-of-milestone
// summarization; NLPipeline holds one but does not call it.
type ModelPort interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

	// ContextWindow reports the validator's declared context size in
	// tokens.
	ContextWindow() int
}

// AgentFaultError wraps a transport/process failure from an AgentPort,
// carrying the exit reason so callers can decide whether to retry.
type AgentFaultError struct {
	Reason ExitReason
	Err    error
}

func (e *AgentFaultError) Error() string {
	return fmt.Sprintf("agent fault (%s): %v", e.Reason, e.Err)
}

func (e *AgentFaultError) Unwrap() error { return e.Err }

// BudgetExhaustedError is returned by AgentPort implementations (or
// synthesized by the orchestrator) when a call hit its turn budget
// without completing. It is a normal, expected outcome, not a bug.
type BudgetExhaustedError struct {
	TurnsUsed int
	MaxTurns  int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted: used %d of %d turns", e.TurnsUsed, e.MaxTurns)
}

// TimeoutError marks a wall-clock timeout on an AgentPort.Send call.
type TimeoutError struct {
	Timeout string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("agent call timed out after %s", e.Timeout) }

// TransportError marks a failure in the underlying transport itself
// (process crash, broken pipe, connection refused), independent of
// agent logic.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
