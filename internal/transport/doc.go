// Package transport wraps a single WebSocket connection as an event-driven handle.
//
// A Handle is created by a Dialer and reports its lifecycle through four edge
// callbacks, in the order a browser WebSocket would:
//   - Open: the handshake completed
//   - Message: a text frame arrived
//   - Error: dialing or reading failed unexpectedly (always followed by Close)
//   - Close: the connection is gone; fired at most once per handle
//
// Callbacks stop once the owner calls Close, so a superseded handle never reports
// events. Dialing happens in the background: Dial returns immediately with the
// handle in the Connecting state.
package transport
