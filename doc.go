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

// Package orchkit is a supervised code-agent orchestrator.
//
// An implementer agent performs code-writing tasks in a sandboxed
// workspace; a local validator model judges each response for
// completeness, quality, and confidence; a decision core drives the
// next action (proceed, retry, clarify, escalate, abort). Progress,
// interactions, breakpoints, checkpoints, and session metadata are
// persisted so runs can be inspected, resumed, and rolled back.
//
// # Quick start
//
//	orchctl run --config orchkit.yaml <task-id>
//
// # Architecture
//
//	caller -> Orchestrator.ExecuteTask -> SessionManager.EnsureSession
//	       -> AgentPort.Send -> ValidationPipeline.Evaluate
//	       -> decision -> loop or terminate
//
// MemoryCore (pkg/memorycore) is a separate component; ExecuteTask does
// not call it.
//
// A separate natural-language entry point (NLPipeline) turns a user
// sentence into a strictly typed operation descriptor, which the
// orchctl REPL executes directly against StatePort; it does not hand
// work to the Orchestrator.
package orchkit
