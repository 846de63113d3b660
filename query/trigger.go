package query

import "sync"

// Trigger is a source of refetch signals, such as the application regaining
// focus or the network coming back.
type Trigger interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

var _ Trigger = (*Broadcaster)(nil)

// Broadcaster is a Trigger fired by the host application.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]func()
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func())}
}

func (b *Broadcaster) Subscribe(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Broadcast calls every subscriber in the caller's goroutine.
func (b *Broadcaster) Broadcast() {
	b.mu.Lock()
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
