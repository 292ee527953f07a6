package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroadcaster is an in-process Broadcaster. It is the default backend
// for single-process deployments and the fallback when a shared broker is
// unreachable. Sends are non-blocking: a subscriber whose buffer is full
// misses the message.
type MemoryBroadcaster struct {
	topics     map[string]map[*memorySubscriber]struct{}
	bufferSize int
	closed     bool
	done       chan struct{}
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewMemoryBroadcaster creates an in-memory broadcaster. bufferSize is the
// per-subscriber channel buffer; a minimum of 1 is enforced so sends never
// block on an unbuffered channel.
func NewMemoryBroadcaster(bufferSize int) *MemoryBroadcaster {
	return &MemoryBroadcaster{
		topics:     make(map[string]map[*memorySubscriber]struct{}),
		bufferSize: max(bufferSize, 1),
		done:       make(chan struct{}),
	}
}

type memorySubscriber struct {
	topic  string
	ch     chan Message
	parent *MemoryBroadcaster
	once   sync.Once
}

func (s *memorySubscriber) Messages() <-chan Message { return s.ch }

func (s *memorySubscriber) Topic() string { return s.topic }

func (s *memorySubscriber) Close() error {
	s.once.Do(func() {
		s.parent.detach(s)
		close(s.ch)
	})
	return nil
}

// Subscribe attaches a subscriber to topic. If the broadcaster is already
// closed the returned subscriber is closed immediately.
func (b *MemoryBroadcaster) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscriber{
		topic:  topic,
		ch:     make(chan Message, b.bufferSize),
		parent: b,
	}

	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub, ErrClosed
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*memorySubscriber]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	if ctx.Done() != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-b.done:
			}
		}()
	}

	return sub, nil
}

// Publish delivers payload to every subscriber of topic without blocking.
// Subscribers with full buffers miss the message.
func (b *MemoryBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			// Full buffer means a slow consumer; dropping keeps Publish non-blocking.
		}
	}

	return nil
}

// SubscriberCount reports how many subscribers are attached to topic.
func (b *MemoryBroadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close shuts down the broadcaster and every attached subscriber.
// It is safe to call multiple times.
func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)

	var subs []*memorySubscriber
	for _, topicSubs := range b.topics {
		for sub := range topicSubs {
			subs = append(subs, sub)
		}
	}
	clear(b.topics)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}

	b.wg.Wait()
	return nil
}

func (b *MemoryBroadcaster) detach(sub *memorySubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}
