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

// Plugin transport for out-of-process implementer agents, using
// hashicorp/go-plugin over gRPC. Each agent.type in configuration names
// a plugin binary on PATH; the orchestrator launches it once at
// startup and talks to it through the AgentPort interface for the
// lifetime of the process.
package ports

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
)

// Handshake is shared between host and plugin binaries. The cookie
// values must match exactly or go-plugin refuses to connect, guarding
// against accidentally launching an unrelated executable as a plugin.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ORCHKIT_AGENT_PLUGIN",
	MagicCookieValue: "implementer",
}

// AgentPluginMap is the go-plugin plugin set this host speaks; it has a
// single entry because each plugin process hosts exactly one AgentPort.
var AgentPluginMap = map[string]goplugin.Plugin{
	"agent": &AgentGRPCPlugin{},
}

// LaunchedAgent owns the subprocess backing a plugin-based AgentPort
// and must be released via Close when the orchestrator shuts down.
type LaunchedAgent struct {
	AgentPort
	client *goplugin.Client
}

// Close terminates the plugin subprocess. It is safe to call more than
// once.
func (l *LaunchedAgent) Close() {
	if l.client != nil {
		l.client.Kill()
	}
}

// LaunchAgentPlugin starts the named executable as a go-plugin agent
// and dispenses its "agent" plugin. Because AgentGRPCPlugin.GRPCClient
// always returns an error, the dispense step fails and this returns
// that error even when the process starts and completes the handshake.
func LaunchAgentPlugin(binaryPath string, args ...string) (*LaunchedAgent, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "agent-plugin",
		Level:  hclog.Warn,
		Output: hclog.DefaultOutput,
	})

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         AgentPluginMap,
		Cmd:             exec.Command(binaryPath, args...),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolGRPC},
		Logger:          logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("ports: dispense plugin client: %w", err)
	}

	raw, err := rpcClient.Dispense("agent")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("ports: dispense agent: %w", err)
	}

	agent, ok := raw.(AgentPort)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("ports: plugin %q does not implement AgentPort", binaryPath)
	}

	return &LaunchedAgent{AgentPort: agent, client: client}, nil
}

// AgentGRPCPlugin satisfies go-plugin's GRPCPlugin interface for
// AgentPort, but both GRPCServer and GRPCClient return an error: this
// module defines no AgentPort gRPC service (protobuf definitions), in
// line with the scope note in spec.md 1 that the concrete implementer
// transport is out of core scope.
type AgentGRPCPlugin struct {
	goplugin.NetRPCUnsupportedPlugin
	Impl AgentPort
}

func (p *AgentGRPCPlugin) GRPCServer(broker *goplugin.GRPCBroker, s *grpc.Server) error {
	return fmt.Errorf("ports: GRPCServer must be wired to a generated service registrar by the concrete plugin")
}

func (p *AgentGRPCPlugin) GRPCClient(ctx context.Context, broker *goplugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return nil, fmt.Errorf("ports: GRPCClient must be wired to a generated service client by the concrete plugin")
}
