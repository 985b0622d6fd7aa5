// Package notify provides an in-process broadcast bus for side-channel
// notices. Publishing never blocks: a subscriber that stops draining its
// channel loses notices, matching the fire-and-forget contract.
package notify

import (
	"sync"

	"github.com/quillab/quill"
)

// Interface compliance check.
var _ quill.Notifier = (*Bus)(nil)

// Bus fans notices out to all current subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan quill.Notice
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan quill.Notice)}
}

// Subscribe registers a listener with the given channel buffer and returns
// the channel plus an unsubscribe function. Unsubscribing closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan quill.Notice, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan quill.Notice, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the notice to every subscriber that has buffer space.
func (b *Bus) Publish(n quill.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Subscriber lagging; notice dropped.
		}
	}
}
