// Package events fans lifecycle events out to the live feeds. Each
// subscriber gets its own buffered channel; a subscriber that falls behind
// loses events instead of stalling the transaction that produced them.
package events

import (
	"log/slog"
	"sync"

	"libraryhub/pkg/models"
)

type Bus struct {
	mu     sync.Mutex
	subs   []chan models.LifecycleEvent
	closed bool
	log    *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers a new reader. The channel is closed by Close.
func (b *Bus) Subscribe(buffer int) <-chan models.LifecycleEvent {
	ch := make(chan models.LifecycleEvent, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish never blocks.
func (b *Bus) Publish(ev models.LifecycleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for i, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("event subscriber full, dropping event",
				"subscriber", i, "event", ev.ID, "type", ev.Type)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
