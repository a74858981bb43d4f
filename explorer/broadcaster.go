package explorer

import "sync"

// StepUpdate is broadcast to watchers after every step of a session.
type StepUpdate struct {
	Step        int       `json:"step"`
	Observation []float64 `json:"observation"`
	Done        bool      `json:"done"`
}

// Subscriber receives step updates for one session.
type Subscriber chan StepUpdate

// Broadcaster fans step updates out to any number of subscribers without
// ever blocking the stepping side.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[Subscriber]struct{}),
	}
}

func (b *Broadcaster) Subscribe() Subscriber {
	ch := make(Subscriber, 64) // buffer to avoid blocking Publish
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing
// twice is a no-op.
func (b *Broadcaster) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
}

// Publish sends an update to all subscribers.
// Non-blocking: if a subscriber's buffer is full, the update is dropped for
// that subscriber.
func (b *Broadcaster) Publish(u StepUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub <- u:
		default:
			// buffer full, drop the update for this slow watcher
		}
	}
}

// Close removes every subscriber and closes their channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
