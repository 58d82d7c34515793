// Package broadcast is the process-wide channel on which permission failures are announced.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/mystudenthub/backend/core"
)

// Handler receives published permission failures.
type Handler func(ctx context.Context, ev *core.PermissionError)

// Bus fans out permission failures to every current subscriber.
// Events published while nobody is subscribed are dropped; nothing is stored.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]Handler
	nextID uint64
	closed bool
	logger core.Logger
}

func NewBus(logger core.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]Handler),
		logger: logger,
	}
}

// Subscribe registers h and returns the function removing it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || h == nil {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber and returns how many received it.
// A panicking subscriber is logged and skipped.
func (b *Bus) Publish(ctx context.Context, ev *core.PermissionError) int {
	if ev == nil {
		return 0
	}
	b.mu.RLock()
	if b.closed || len(b.subs) == 0 {
		b.mu.RUnlock()
		return 0
	}
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var delivered int
	for _, h := range handlers {
		if b.deliver(ctx, h, ev) {
			delivered++
		}
	}
	return delivered
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev *core.PermissionError) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if b.logger != nil {
				b.logger.Error(fmt.Sprintf("broadcast: subscriber panicked: %v", r), fmt.Errorf("%v", r))
			}
		}
	}()
	h(ctx, ev)
	return true
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]Handler)
}
