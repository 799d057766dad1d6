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

// Package logging builds the slog.Logger the Orchestrator, StatePort
// implementations, and cmd/orchctl all log through: a plain-text
// terminal handler (no ANSI color) for interactive use, and a separate JSON-lines
// production sink gated by monitoring.production_logging.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// simpleTextHandler renders "LEVEL message key=value ..." without a
// timestamp column, matching interactive REPL output.
type simpleTextHandler struct {
	writer   io.Writer
	minLevel slog.Level
	attrs    []slog.Attr
}

func (h *simpleTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *simpleTextHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	levelStr := record.Level.String()
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	buf.WriteString(strings.ToUpper(levelStr))
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	for _, a := range h.attrs {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *simpleTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *simpleTextHandler) WithGroup(_ string) slog.Handler { return h }

// Init builds the process-wide default logger: a terminal handler at
// level, writing to output. format "simple" drops timestamps for
// interactive sessions; anything else uses slog's standard text
// layout.
func Init(level slog.Level, output *os.File, format string) *slog.Logger {
	var handler slog.Handler
	if format == "simple" || format == "" {
		handler = &simpleTextHandler{writer: output, minLevel: level}
	} else {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// Default returns the process-wide logger, initializing it at INFO
// level to stderr if Init was never called.
func Default() *slog.Logger {
	if defaultLogger == nil {
		return Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}

// WithProduction fans records out to both base and a production sink,
// so interactive output and the durable audit trail stay independent
// of one another.
func WithProduction(base *slog.Logger, sink slog.Handler) *slog.Logger {
	return slog.New(&fanoutHandler{handlers: []slog.Handler{base.Handler(), sink}})
}

type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, child := range h.handlers {
		if child.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, child := range h.handlers {
		if !child.Enabled(ctx, record.Level) {
			continue
		}
		if err := child.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, child := range h.handlers {
		next[i] = child.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, child := range h.handlers {
		next[i] = child.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
