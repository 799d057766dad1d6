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

// Package errs defines the tagged error kinds shared across the
// orchestrator. Every outer boundary (CLI, interactive REPL, orchestrator)
// converts an error into one of these kinds before surfacing it; none of
// them is ever collapsed into a bare boolean or discarded silently.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags an error with the category the orchestrator uses to decide
// how to react (abort, retry, surface to user, escalate).
type Kind string

const (
	// KindUser marks malformed input: a bad slash command, an invalid
	// id. Recoverable; surfaced to the user verbatim.
	KindUser Kind = "user_error"
	// KindValidation marks an NL or operation validation failure.
	// Recoverable; carries the failing stage and field.
	KindValidation Kind = "validation_error"
	// KindConfirmationRequired is not a failure, it is a state: the
	// caller must resolve a PendingConfirmation before proceeding.
	KindConfirmationRequired Kind = "confirmation_required"
	// KindStorageFault marks a StatePort failure. Fatal to the current
	// operation; Orchestrator.ExecuteTask stops and returns it with an
	// empty TaskResult. It raises no breakpoint and does not change the
	// task's status.
	KindStorageFault Kind = "storage_fault"
	// KindAgentFault marks an AgentPort transport or process failure.
	// Carries the AgentResult exit reason; retried with backoff when
	// the reason is transient.
	KindAgentFault Kind = "agent_fault"
	// KindBudgetExhausted is a normal outcome, not a bug: it drives the
	// turn-budget retry rule.
	KindBudgetExhausted Kind = "budget_exhausted"
	// KindContextCritical marks the red zone: new agent calls are
	// refused until a checkpoint and refresh complete.
	KindContextCritical Kind = "context_critical"
	// KindEscalation is not an error per se: it surfaces as a
	// breakpoint with reason ESCALATE.
	KindEscalation Kind = "escalation"
)

// Error is the single error type carried across every internal
// boundary. Op names the operation that failed; Field, when set, names
// the offending field or stage; Err, when set, wraps the underlying
// cause.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (field %s): %v", e.Kind, e.Op, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field %s)", e.Kind, e.Op, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons by Kind: errors.Is(err, errs.StorageFault("", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func UserError(op string, err error) *Error       { return newErr(KindUser, op, err) }
func StorageFault(op string, err error) *Error    { return newErr(KindStorageFault, op, err) }
func AgentFault(op string, err error) *Error      { return newErr(KindAgentFault, op, err) }
func BudgetExhausted(op string) *Error            { return newErr(KindBudgetExhausted, op, nil) }
func ContextCritical(op string) *Error            { return newErr(KindContextCritical, op, nil) }
func Escalation(op string) *Error                 { return newErr(KindEscalation, op, nil) }
func ConfirmationRequired(op string) *Error       { return newErr(KindConfirmationRequired, op, nil) }

// ValidationError names the stage and field that rejected the input.
func ValidationError(op, field string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: err}
}

// KindOf extracts the Kind from err, walking the Unwrap chain. The
// second return is false when no *Error is found anywhere in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
