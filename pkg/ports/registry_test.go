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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct{ name string }

func (s *stubAgent) Name() string { return s.name }
func (s *stubAgent) Send(ctx context.Context, prompt string, call CallContext) (AgentResult, error) {
	return AgentResult{Text: "ok", ExitReason: ExitOK}, nil
}

func TestAgentRegistryBuildUnknownType(t *testing.T) {
	r := NewAgentRegistry()
	_, err := r.Build("nonexistent", nil)
	require.Error(t, err)
}

func TestAgentRegistryRegisterAndBuild(t *testing.T) {
	r := NewAgentRegistry()
	require.NoError(t, r.Register("stub", func(config map[string]any) (AgentPort, error) {
		return &stubAgent{name: "stub"}, nil
	}))

	agent, err := r.Build("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", agent.Name())
}

func TestExitReasonTransient(t *testing.T) {
	assert.True(t, ExitTimeout.Transient())
	assert.True(t, ExitSessionLocked.Transient())
	assert.True(t, ExitInternalError.Transient())
	assert.False(t, ExitOK.Transient())
	assert.False(t, ExitMaxTurns.Transient())
}
