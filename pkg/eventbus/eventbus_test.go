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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(4, nil)
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(Event{Type: PromptSent, Producer: "task-1"})

	select {
	case ev := <-ch1:
		assert.Equal(t, PromptSent, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive event")
	}
	select {
	case ev := <-ch2:
		assert.Equal(t, PromptSent, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive event")
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	b := New(2, nil)
	_, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: ResponseReceived, Producer: "task-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(4, nil)
	ch, unsub := b.Subscribe()
	unsub()

	b.Publish(Event{Type: DecisionMade})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestSubscriberCount(t *testing.T) {
	b := New(4, nil)
	require.Equal(t, 0, b.SubscriberCount())
	_, unsub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	unsub()
	require.Equal(t, 0, b.SubscriberCount())
}
