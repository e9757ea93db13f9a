// Package connection implements the chat connection manager.
//
// The Manager:
//   - Owns exactly one transport handle at a time, closing the old one before dialing
//   - Tracks the connection state machine Idle → Connecting → Open → Closed
//   - Samples liveness with a HeartbeatMonitor (passive: reads local socket state)
//   - Retries on a fixed interval with a ReconnectScheduler until the handle opens
//   - Parses inbound frames and publishes them on the message bus in receipt order
//
// All state is confined to a single event-loop goroutine. Transport callbacks,
// timer ticks and public calls are posted onto that loop, so the components in
// this package never lock and never see two events at once. A tick or callback
// from a canceled timer or a superseded handle is recognised and dropped.
package connection
