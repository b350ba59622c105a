package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// Bus is an in-process Publisher and Subscriber for single-replica runs
// without Redis
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Publish fans the event out to every subscriber of its world. A subscriber
// whose buffer is full misses the event.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[event.WorldID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber; cancel or ctx end removes it and closes
// the channel
func (b *Bus) Subscribe(ctx context.Context, worldID string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[worldID] == nil {
		b.subs[worldID] = make(map[int]chan Event)
	}
	b.subs[worldID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[worldID], id)
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// Subscribers returns the number of live subscribers of a world
func (b *Bus) Subscribers(worldID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[worldID])
}
