package sessionstore

import "context"

// Publish sends payload to every process subscribed to topic, best-effort.
// When the shared backend is healthy the message goes through its native
// pub/sub (which loops back to this process's own subscribers); when
// degraded it is delivered to in-process subscribers only. Delivery is
// never guaranteed and never reported as an error: the durable store is
// the correctness backstop.
func (s *Store) Publish(ctx context.Context, topic string, payload []byte) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		err := s.client.Publish(opCtx, topic, payload).Err()
		cancel()
		if err == nil {
			return
		}
		s.degrade("publish", err)
	}
	_ = s.localBus.Publish(ctx, topic, payload)
}

// Subscribe invokes handler for every message published to topic, from this
// process or any other process sharing the backend. The subscription runs
// until ctx is cancelled or the store is closed. handler may be invoked
// concurrently from multiple delivery goroutines.
func (s *Store) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) {
	// In-process leg: catches messages published while degraded.
	localSub, err := s.localBus.Subscribe(ctx, topic)
	if err == nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer localSub.Close()
			for {
				select {
				case msg, ok := <-localSub.Messages():
					if !ok {
						return
					}
					handler(msg.Payload)
				case <-s.done:
					return
				}
			}
		}()
	}

	if s.client == nil {
		return
	}

	// Shared-backend leg: the client reconnects and resubscribes on its own
	// after outages, so degraded periods only lose messages, not the
	// subscription itself.
	pubsub := s.client.Subscribe(ctx, topic)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}
