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

package eventbus

import (
	"context"
	"log/slog"
)

// RunLogSink drains events and writes one structured log line per
// event until ctx is cancelled or the channel closes. Intended to be
// started in its own goroutine right after Subscribe.
func RunLogSink(ctx context.Context, logger *slog.Logger, events <-chan Event) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			args := []any{"event", ev.Type, "producer", ev.Producer}
			for k, v := range ev.Payload {
				args = append(args, k, v)
			}
			logger.Info("orchestrator event", args...)
		}
	}
}
