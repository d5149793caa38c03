// Package syncbus is the in-process change notification channel between stores.
//
// A notification carries no payload. Listeners re-read whatever state they care
// about, so they always observe the latest committed snapshot.
package syncbus

import (
	"context"
	"sync"
)

// Listener is called on every publish.
type Listener func()

// Unsubscribe removes a listener. Calling it more than once is harmless.
type Unsubscribe func()

// Bus is a synchronous broadcast channel.
type Bus struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]Listener
	order     []uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.listeners[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish calls every listener registered at the time of the call, in
// subscription order, and returns after the last one has returned.
// Listeners may call Subscribe, Unsubscribe or Publish themselves.
func (b *Bus) Publish() {
	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range snapshot {
		fn()
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Stream turns notifications into ticks on a channel until ctx is done.
// Bursts coalesce into a single pending tick so a slow reader never blocks Publish.
func (b *Bus) Stream(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	unsubscribe := b.Subscribe(func() {
		select {
		case ch <- struct{}{}:
		default:
			// a tick is already pending
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch
}
