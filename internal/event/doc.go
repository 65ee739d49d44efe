/*
Package event provides the pub/sub event system behind the walletperm server.

Publishers emit events and subscribers react to them without direct
dependencies. The bus keeps direct-call semantics so typed subscribers see the
original Go values, and mirrors the JSON encoding of each event onto a
watermill GoChannel topic for consumers that only forward bytes, such as the
SSE endpoint.

# Event Types

Permission events:
  - permission.requested: a protocol, basket, certificate or spending request needs consent
  - permission.grouped.requested: a grouped request needs consent
  - permission.granted: a pending request was granted
  - permission.denied: a pending request was denied

Token events:
  - token.revoked: a permission token was spent without replacement

Stream events:
  - server.connected: first event on every SSE connection

# Basic Usage

	event.Publish(event.Event{
		Type: event.PermissionDenied,
		Data: event.PermissionDeniedData{RequestID: id},
	})

	unsubscribe := event.Subscribe(event.PermissionRequested, func(e event.Event) {
		data := e.Data.(event.PermissionRequestedData)
		log.Info().Str("id", data.RequestID).Msg("consent needed")
	})
	defer unsubscribe()

Reading the JSON stream:

	msgs, err := bus.Stream(ctx)
	for msg := range msgs {
		forward(msg.Payload)
		msg.Ack()
	}

# Subscriber Safety

PublishSync calls subscribers in the publisher's goroutine. Subscribers must
return quickly, must not publish re-entrantly, and should use non-blocking
channel sends.

# Testing

	bus := event.NewBus()
	defer bus.Close()

event.Reset replaces the global bus.
*/
package event
