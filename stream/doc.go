// Package stream provides the websocket layer shared by exchange adapters.
//
// The package splits the problem in two:
//
//   - Client owns one physical connection: handshake, keepalive pings,
//     automatic reconnection with bounded backoff, and an idempotent Close.
//     It forwards raw frames and knows nothing about logical channels.
//
//   - Manager owns the subscription registry over one Client: channel-keyed
//     routing of parsed messages, queueing of payloads sent while
//     disconnected, and replay of every active subscription after a
//     reconnect, in registration order.
//
// Subscribe and unsubscribe payloads are opaque bytes defined by the
// adapter; the manager stores and replays them verbatim.
//
// # Usage
//
//	c := stream.NewClient(stream.ClientConfig{URL: "wss://exchange.example/ws"})
//	m := stream.NewManager(c, stream.ManagerConfig{})
//	defer m.Close()
//
//	if err := m.Connect(ctx); err != nil {
//	    return err
//	}
//
//	s, err := m.Watch(ctx, "ticker.BTCUSD",
//	    []byte(`{"op":"subscribe","channel":"ticker.BTCUSD"}`),
//	    []byte(`{"op":"unsubscribe","channel":"ticker.BTCUSD"}`),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for msg := range s.Messages() {
//	    handleTick(msg.Payload)
//	}
package stream
