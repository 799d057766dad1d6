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
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/etcd"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// SourceType names which backend a Loader reads from.
type SourceType string

const (
	SourceFile   SourceType = "file"
	SourceConsul SourceType = "consul"
	SourceEtcd   SourceType = "etcd"
)

// LoaderOptions configures where the config tree is read from.
type LoaderOptions struct {
	Type SourceType

	// Path is a filesystem path for SourceFile, or the KV key under
	// which the tree is stored for SourceConsul/SourceEtcd.
	Path string

	Endpoints []string
}

// Loader loads and strictly validates a Config from file, Consul, or
// etcd.
type Loader struct {
	koanf  *koanf.Koanf
	opts   LoaderOptions
	parser *yaml.YAML
}

// NewLoader builds a Loader. opts.Path is required.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Type == "" {
		opts.Type = SourceFile
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case SourceConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case SourceEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		}
	}
	return &Loader{koanf: koanf.New("."), opts: opts, parser: yaml.Parser()}, nil
}

// Load reads the configured source, overlays it on top of Default(),
// and runs strict validation before returning.
func (l *Loader) Load() (*Config, error) {
	var provider koanf.Provider

	switch l.opts.Type {
	case SourceFile:
		provider = file.Provider(l.opts.Path)
	case SourceConsul:
		consulConfig := api.DefaultConfig()
		consulConfig.Address = l.opts.Endpoints[0]
		provider = consul.Provider(consul.Config{Cfg: consulConfig, Key: l.opts.Path})
	case SourceEtcd:
		provider = etcd.Provider(etcd.Config{
			Endpoints:   l.opts.Endpoints,
			DialTimeout: 5 * time.Second,
			Key:         l.opts.Path,
		})
	default:
		return nil, fmt.Errorf("config: unsupported source type %q", l.opts.Type)
	}

	var parser koanf.Parser
	if l.opts.Type == SourceFile {
		parser = l.parser
	}

	if err := l.koanf.Load(provider, parser); err != nil {
		return nil, fmt.Errorf("config: load from %s %s: %w", l.opts.Type, l.opts.Path, err)
	}

	raw := l.koanf.Raw()
	if err := strictDecode(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is the common-case entry point: load a Config from a single
// YAML file on disk, falling back to Default() if path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return &cfg, Validate(&cfg)
	}
	loader, err := NewLoader(LoaderOptions{Type: SourceFile, Path: path})
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
