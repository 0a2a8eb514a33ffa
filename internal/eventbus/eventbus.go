// Package eventbus implements a topic-indexed publish/subscribe primitive
// used by every component that needs to notify the rest of the system
// without calling back into its own caller. It replaces the direct
// on/emit callback registry the original system used.
package eventbus

import "sync"

// Handler receives one published payload.
type Handler func(payload interface{})

type subscriber struct {
	ch chan interface{}
}

// Bus is a topic-indexed publish/subscribe dispatcher. Delivery to a
// single subscriber preserves publish order; a slow or failing subscriber
// never blocks delivery to others.
type Bus struct {
	mu    sync.RWMutex
	subs  map[string][]*subscriber
	queue int
}

// New constructs a Bus. queueSize bounds each subscriber's pending-event
// buffer; a subscriber that falls behind this far drops its oldest event
// rather than blocking the publisher.
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Bus{subs: make(map[string][]*subscriber), queue: queueSize}
}

// Subscribe registers handler for topic. Delivery runs on its own
// goroutine per subscriber so handlers that block do not stall the
// publisher or other subscribers. The returned function unsubscribes;
// it may be called concurrently with in-flight delivery, which may
// observe one trailing event per spec.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	sub := &subscriber{ch: make(chan interface{}, b.queue)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case payload, ok := <-sub.ch:
				if !ok {
					return
				}
				handler(payload)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			subs := b.subs[topic]
			for i, s := range subs {
				if s == sub {
					b.subs[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(done)
		})
	}
}

// Publish delivers payload to every current subscriber of topic. If a
// subscriber's queue is full, the oldest pending event is dropped to make
// room — a blocked subscriber never blocks Publish itself.
func (b *Bus) Publish(topic string, payload interface{}) {
	b.mu.RLock()
	subs := make([]*subscriber, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- payload:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- payload:
			default:
			}
		}
	}
}
