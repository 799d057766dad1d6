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

// Package eventbus fans out orchestrator lifecycle events to log,
// interactive, and monitoring subscribers without ever blocking the
// orchestrator loop on a slow consumer.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// Type enumerates the well-defined event points of the orchestrator
// loop and the NL/session subsystems.
type Type string

const (
	PromptPrepared    Type = "PROMPT_PREPARED"
	PromptSent        Type = "PROMPT_SENT"
	ResponseReceived  Type = "RESPONSE_RECEIVED"
	ValidationDone    Type = "VALIDATION_DONE"
	DecisionMade      Type = "DECISION_MADE"
	BreakpointHit     Type = "BREAKPOINT_TRIGGERED"
	SessionRefreshed  Type = "SESSION_REFRESHED"
	CheckpointCreated Type = "CHECKPOINT_CREATED"
	Paused            Type = "PAUSED"
	Resumed           Type = "RESUMED"
	DroppedEvents     Type = "DROPPED_EVENTS"
)

// Event is one emission on the bus. Producer identifies the emitting
// task (usually a task id or "system"), used only to preserve the
// per-producer ordering guarantee; interleaving across producers is
// unspecified.
type Event struct {
	Type      Type
	Producer  string
	Timestamp time.Time
	Payload   map[string]any
}

// subscriber is a single bounded queue plus the goroutine draining it.
type subscriber struct {
	id      int
	ch      chan Event
	dropped int
}

// Bus is many-producer, many-consumer. Publish never blocks: a full
// subscriber queue drops the event, increments that subscriber's drop
// counter, logs a warning, and makes one non-blocking attempt to put a
// DROPPED_EVENTS event on that same queue. If the queue is still full
// that notice is dropped as well; it is not retried later.
type Bus struct {
	mu           sync.Mutex
	subscribers  map[int]*subscriber
	nextID       int
	queueSize    int
	logger       *slog.Logger
	producerSeqs map[string]int64
}

// New builds a Bus whose per-subscriber queues hold queueSize events
// before the drop policy kicks in.
func New(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers:  make(map[int]*subscriber),
		queueSize:    queueSize,
		logger:       logger,
		producerSeqs: make(map[string]int64),
	}
}

// Subscribe returns a receive channel and an unsubscribe function. The
// caller must keep draining the channel; a subscriber that never reads
// only loses its own events to the drop policy, it never affects other
// subscribers or the publisher.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{id: id, ch: make(chan Event, b.queueSize)}
	b.subscribers[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			close(s.ch)
			delete(b.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers ev to every current subscriber. Per-producer order
// is preserved by holding the bus lock for the whole fan-out; this is
// a short critical section (channel sends are non-blocking) so it does
// not become a bottleneck for the orchestrator loop.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			b.logger.Warn("eventbus: dropping event, subscriber queue full",
				"subscriber", sub.id, "event_type", ev.Type, "dropped_total", sub.dropped)
			select {
			case sub.ch <- Event{
				Type:      DroppedEvents,
				Producer:  "eventbus",
				Timestamp: time.Now().UTC(),
				Payload:   map[string]any{"subscriber": sub.id, "dropped_total": sub.dropped},
			}:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of active subscribers, used by
// tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
