package perturbation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// EventType describes an override mutation
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is emitted after an override mutation has been stored
type Event struct {
	Type        EventType `json:"type"`
	ScheduleID  string    `json:"scheduleId"`
	Date        string    `json:"date"`
	Kind        Kind      `json:"kind,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher delivers override events. Implementations are owned and injected
// by the application root.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiPublisher fans an event out to every publisher and joins their errors
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bus is an in-process publish/subscribe channel. Slow subscribers lose
// events instead of blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriptions buffer up to buffer events
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe registers a new subscriber. Call the returned function to leave.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking
func (b *Bus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers returns the current number of subscribers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
