// Package broadcast provides a minimal best-effort topic fan-out used to
// propagate logout events between processes sharing a backend. It makes no
// ordering or delivery guarantee: subscribers with full buffers miss
// messages, and disconnected processes catch up from the durable store on
// their next cold read.
//
// The in-memory implementation covers single-process deployments and serves
// as the fallback when the shared backend is degraded. Cross-process fan-out
// is provided by the session store on top of the shared backend's native
// publish/subscribe.
//
//	b := broadcast.NewMemoryBroadcaster(64)
//	sub, _ := b.Subscribe(ctx, "logout")
//	go func() {
//	    for msg := range sub.Messages() {
//	        handle(msg.Payload)
//	    }
//	}()
//	_ = b.Publish(ctx, "logout", payload)
package broadcast
