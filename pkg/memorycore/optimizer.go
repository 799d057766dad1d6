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

package memorycore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/orchkit/pkg/ports"
)

// OptimizerConfig holds the per-technique knobs from spec.md 4.3.
type OptimizerConfig struct {
	PruningAge              time.Duration
	MaxValidationResults    int
	ExternalizationThreshold int // tokens
	SummarizationEnabled    bool
}

// DefaultOptimizerConfig is a reasonable starting point consistent with
// the aggressive/balanced profiles.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		PruningAge:               30 * time.Minute,
		MaxValidationResults:     3,
		ExternalizationThreshold: 2000,
		SummarizationEnabled:     false,
	}
}

// OptimizationResult reports the before/after cost of a BuildContext
// call so callers can check the 0.7x target compression ratio.
type OptimizationResult struct {
	InputTokens  int
	OutputTokens int
}

// GetSavings is the absolute token count removed.
func (r OptimizationResult) GetSavings() int { return r.InputTokens - r.OutputTokens }

// GetReductionPercentage is the savings expressed as a percentage of
// the input size.
func (r OptimizationResult) GetReductionPercentage() float64 {
	if r.InputTokens == 0 {
		return 0
	}
	return float64(r.GetSavings()) / float64(r.InputTokens) * 100
}

// CompressionRatio is OutputTokens/InputTokens; spec.md 4.3 targets
// 0.7 or better (lower is better).
func (r OptimizationResult) CompressionRatio() float64 {
	if r.InputTokens == 0 {
		return 0
	}
	return float64(r.OutputTokens) / float64(r.InputTokens)
}

// Optimizer applies the five optimization techniques of spec.md 4.3, in
// order, when building a context string from working memory.
type Optimizer struct {
	Config    OptimizerConfig
	Estimator *Estimator
	Episodic  EpisodicStore
	Model     ports.ModelPort // optional, used only by summarization
}

func NewOptimizer(cfg OptimizerConfig, estimator *Estimator, episodic EpisodicStore, model ports.ModelPort) *Optimizer {
	return &Optimizer{Config: cfg, Estimator: estimator, Episodic: episodic, Model: model}
}

// BuildContext renders ops plus the session document's artifact
// registry into a single context string, applying pruning, artifact
// replacement, external-storage spilling, differential-state emission,
// and (optionally) summarization, in that order.
func (o *Optimizer) BuildContext(ctx context.Context, ops []Operation, doc *SessionDoc) (string, OptimizationResult, error) {
	raw := renderRaw(ops, doc)
	inputTokens := o.Estimator.Estimate(raw)

	pruned := o.prune(ops)
	withArtifacts := o.replaceArtifacts(pruned, doc)
	spilled, err := o.externalize(ctx, withArtifacts, doc)
	if err != nil {
		return "", OptimizationResult{}, fmt.Errorf("memorycore: externalize: %w", err)
	}
	deduped := o.differential(spilled, doc)

	final := deduped
	if o.Config.SummarizationEnabled && o.Model != nil {
		final, err = o.summarize(ctx, deduped)
		if err != nil {
			return "", OptimizationResult{}, fmt.Errorf("memorycore: summarize: %w", err)
		}
	}

	rendered := renderOperations(final, doc)
	outputTokens := o.Estimator.Estimate(rendered)

	return rendered, OptimizationResult{InputTokens: inputTokens, OutputTokens: outputTokens}, nil
}

// prune drops debug/trace operations older than PruningAge and all but
// the last MaxValidationResults validation records.
func (o *Optimizer) prune(ops []Operation) []Operation {
	cutoff := time.Now().UTC().Add(-o.Config.PruningAge)
	var kept []Operation
	validationIdx := make([]int, 0)

	for _, op := range ops {
		switch op.Kind {
		case KindDebug, KindTrace:
			if op.Timestamp.After(cutoff) {
				kept = append(kept, op)
			}
		case KindValidation:
			kept = append(kept, op)
			validationIdx = append(validationIdx, len(kept)-1)
		default:
			kept = append(kept, op)
		}
	}

	if len(validationIdx) > o.Config.MaxValidationResults {
		drop := make(map[int]bool)
		for _, idx := range validationIdx[:len(validationIdx)-o.Config.MaxValidationResults] {
			drop[idx] = true
		}
		filtered := kept[:0:0]
		for i, op := range kept {
			if !drop[i] {
				filtered = append(filtered, op)
			}
		}
		kept = filtered
	}
	return kept
}

// replaceArtifacts swaps large file-body content for an {path, hash,
// summary} pointer already tracked in the session's artifact registry.
func (o *Optimizer) replaceArtifacts(ops []Operation, doc *SessionDoc) []Operation {
	if doc == nil || len(doc.Artifacts) == 0 {
		return ops
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		if op.Kind != KindArtifact {
			out[i] = op
			continue
		}
		path := artifactPath(op.Content)
		if ref, ok := doc.Artifacts[path]; ok {
			out[i] = Operation{
				Kind:      op.Kind,
				Content:   fmt.Sprintf("[artifact %s hash=%s] %s", ref.Path, ref.Hash, ref.Summary),
				Tokens:    op.Tokens,
				Timestamp: op.Timestamp,
			}
		} else {
			out[i] = op
		}
	}
	return out
}

// externalize spills operations larger than ExternalizationThreshold to
// the episodic tier, replacing them in-line with a pointer.
func (o *Optimizer) externalize(ctx context.Context, ops []Operation, doc *SessionDoc) ([]Operation, error) {
	if o.Episodic == nil {
		return ops, nil
	}
	out := make([]Operation, len(ops))
	for i, op := range ops {
		if op.Tokens <= o.Config.ExternalizationThreshold {
			out[i] = op
			continue
		}
		sessionID := ""
		if doc != nil {
			sessionID = doc.SessionID
		}
		rec := EpisodicRecord{ProjectID: sessionID, Content: op.Content}
		id, err := o.Episodic.Append(ctx, rec)
		if err != nil {
			return nil, err
		}
		out[i] = Operation{
			Kind:      op.Kind,
			Content:   fmt.Sprintf("[externalized -> episodic:%s]", id),
			Tokens:    estimatePointerTokens(),
			Timestamp: op.Timestamp,
		}
	}
	return out, nil
}

// differential collapses a repeated full-state operation (same kind and
// identical content to the previous operation of that kind) into a short delta
// marker, rather than emitting the same description twice.
func (o *Optimizer) differential(ops []Operation, doc *SessionDoc) []Operation {
	if len(ops) == 0 {
		return ops
	}
	out := make([]Operation, 0, len(ops))
	seen := make(map[string]string) // kind -> last content
	for _, op := range ops {
		key := string(op.Kind)
		if prior, ok := seen[key]; ok && prior == op.Content {
			out = append(out, Operation{
				Kind:      op.Kind,
				Content:   "[unchanged since previous entry]",
				Tokens:    estimatePointerTokens(),
				Timestamp: op.Timestamp,
			})
			continue
		}
		seen[key] = op.Content
		out = append(out, op)
	}
	return out
}

// summarize collapses a run of older operations into a single synopsis
// using the validator ModelPort. It keeps the most recent keepRecent
// (5) operations verbatim.
func (o *Optimizer) summarize(ctx context.Context, ops []Operation) ([]Operation, error) {
	const keepRecent = 5
	if len(ops) <= keepRecent {
		return ops, nil
	}
	older, recent := ops[:len(ops)-keepRecent], ops[len(ops)-keepRecent:]

	var sb strings.Builder
	for _, op := range older {
		sb.WriteString(string(op.Kind))
		sb.WriteString(": ")
		sb.WriteString(op.Content)
		sb.WriteString("\n")
	}

	summary, err := o.Model.Generate(ctx,
		"Summarize the following operation log into a short synopsis:\n\n"+sb.String(), 256, 0.2)
	if err != nil {
		return ops, nil // summarization must never hard-fail context building
	}

	merged := make([]Operation, 0, len(recent)+1)
	merged = append(merged, Operation{Kind: KindSummary, Content: summary, Tokens: o.Estimator.Estimate(summary)})
	merged = append(merged, recent...)
	return merged, nil
}

func renderRaw(ops []Operation, doc *SessionDoc) string {
	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(op.Content)
		sb.WriteString("\n")
	}
	if doc != nil {
		for _, s := range doc.Summaries {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderOperations(ops []Operation, doc *SessionDoc) string {
	return renderRaw(ops, doc)
}

func estimatePointerTokens() int { return 8 }

func artifactPath(content string) string {
	if idx := strings.Index(content, ":"); idx > 0 {
		return content[:idx]
	}
	return content
}

// HashContent is the artifact registry's hash function.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}
