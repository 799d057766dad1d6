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
	"fmt"

	"github.com/kadirpekel/orchkit/pkg/registry"
)

// AgentFactory builds an AgentPort from its configuration section. It
// is registered once per agent.type at startup; no dynamic reflection
// is used to resolve a type name to an implementation.
type AgentFactory func(config map[string]any) (AgentPort, error)

// ModelFactory builds a ModelPort from its configuration section.
type ModelFactory func(config map[string]any) (ModelPort, error)

// AgentRegistry resolves a configured agent.type to its factory.
type AgentRegistry struct {
	factories *registry.BaseRegistry[AgentFactory]
}

func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{factories: registry.NewBaseRegistry[AgentFactory]()}
}

func (r *AgentRegistry) Register(name string, factory AgentFactory) error {
	return r.factories.Register(name, factory)
}

func (r *AgentRegistry) Build(name string, config map[string]any) (AgentPort, error) {
	factory, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("ports: no agent registered for type %q", name)
	}
	return factory(config)
}

// ModelRegistry resolves a configured model.type to its factory.
type ModelRegistry struct {
	factories *registry.BaseRegistry[ModelFactory]
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{factories: registry.NewBaseRegistry[ModelFactory]()}
}

func (r *ModelRegistry) Register(name string, factory ModelFactory) error {
	return r.factories.Register(name, factory)
}

func (r *ModelRegistry) Build(name string, config map[string]any) (ModelPort, error) {
	factory, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("ports: no model registered for type %q", name)
	}
	return factory(config)
}
