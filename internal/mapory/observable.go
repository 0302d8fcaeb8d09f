package mapory

import "sync"

// Observable holds a current value and fans it out to subscribers.
// Subscribers always see the latest value; intermediate values may be skipped
// if a subscriber reads slower than values are published.
type Observable[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
}

// NewObservable creates an Observable holding initial.
func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Value returns the current value.
func (o *Observable[T]) Value() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Publish replaces the current value and notifies every subscriber.
// It never blocks.
func (o *Observable[T]) Publish(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	for _, ch := range o.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that immediately yields the current value and
// then each later value, plus a cancel func that closes the channel.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	ch := make(chan T, 1)
	ch <- o.value
	o.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer replaces any unread value in ch with v. Callers hold o.mu, so no
// other sender can fill the slot between the drain and the send.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
