package services

import (
	"fmt"
	"sync"

	"github.com/medilink/medilink-api/models"
)

// Broker is the change feed for newly persisted messages. Publishers hand it
// every message the store confirmed, in commit order; subscribers receive the
// messages of one conversation pair as they arrive. Delivery is at-least-once
// relative to a concurrent history reload, so consumers must deduplicate by
// message id. Ordering is only guaranteed within a single pair.
type Broker interface {
	Publish(msg *models.Message) error
	Subscribe(userA, userB uint, onInsert func(*models.Message)) (*Subscription, error)
}

// Subscription is a handle on one conversation's feed. Unsubscribe is
// idempotent and safe to call after the underlying connection dropped.
type Subscription struct {
	once sync.Once
	stop func()
}

// Unsubscribe releases the subscription
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// PairKey returns the canonical identifier of an unordered conversation
// pair: the two ids sorted ascending, dot-separated. Both broker
// implementations key their routing on it.
func PairKey(userA, userB uint) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d.%d", userA, userB)
}

var chatBroker Broker

// InitChatBroker installs the broker used by the HTTP and WebSocket layers
func InitChatBroker(b Broker) {
	chatBroker = b
}

// GetChatBroker returns the installed broker (nil before InitChatBroker)
func GetChatBroker() Broker {
	return chatBroker
}

// memorySubscriber buffers deliveries so a slow consumer cannot stall Publish
type memorySubscriber struct {
	ch   chan *models.Message
	done chan struct{}
}

// MemoryBroker is the in-process Broker used when no NATS server is
// configured. Per-pair ordering holds because each subscriber drains its
// buffered channel from a single goroutine, in the order Publish enqueued.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscriber]struct{}
}

// NewMemoryBroker creates an empty in-process broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[string]map[*memorySubscriber]struct{}),
	}
}

// Publish fans the message out to every subscriber of its conversation pair.
// A subscriber whose buffer is full is skipped rather than blocking the
// publisher; it will recover the gap on its next explicit reload.
func (b *MemoryBroker) Publish(msg *models.Message) error {
	key := PairKey(msg.SenderID, msg.ReceiverID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[key] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers onInsert for the pair's feed. The callback runs on a
// dedicated goroutine, one message at a time, in publish order.
func (b *MemoryBroker) Subscribe(userA, userB uint, onInsert func(*models.Message)) (*Subscription, error) {
	key := PairKey(userA, userB)
	sub := &memorySubscriber{
		ch:   make(chan *models.Message, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*memorySubscriber]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-sub.ch:
				onInsert(msg)
			case <-sub.done:
				return
			}
		}
	}()

	return &Subscription{stop: func() {
		b.mu.Lock()
		delete(b.subs[key], sub)
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
		b.mu.Unlock()
		close(sub.done)
	}}, nil
}

// SubscriberCount reports the active subscriptions for a pair (used in tests
// to verify that every exit path releases its channel)
func (b *MemoryBroker) SubscriberCount(userA, userB uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[PairKey(userA, userB)])
}
