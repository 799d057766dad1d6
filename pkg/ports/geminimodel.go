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

	"google.golang.org/genai"
)

// GeminiModel is the default ModelPort backend: a synchronous call
// against a hosted Gemini model, used as the local validator when no
// other ModelPort is configured.
type GeminiModel struct {
	client        *genai.Client
	model         string
	contextWindow int
}

// NewGeminiModel builds a GeminiModel. apiKey may be empty to use
// application-default credentials; contextWindow is the validator's
// declared context size in tokens, reported by ContextWindow.
func NewGeminiModel(ctx context.Context, apiKey, model string, contextWindow int) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ports: new genai client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if contextWindow <= 0 {
		contextWindow = 32_000
	}
	return &GeminiModel{client: client, model: model, contextWindow: contextWindow}, nil
}

func (g *GeminiModel) ContextWindow() int { return g.contextWindow }

func (g *GeminiModel) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	temp := float32(temperature)
	maxOut := int32(maxTokens)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxOut,
	})
	if err != nil {
		return "", &TransportError{Err: err}
	}
	return resp.Text(), nil
}
