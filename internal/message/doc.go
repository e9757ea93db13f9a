// Package message defines the chat wire format.
//
// Inbound text frames carry one of two envelopes:
//   - {"users": [<userId>, ...]}: the current roster of connected users
//   - {"msg": "<text>"}: a chat message (broadcast or direct)
//
// Outbound frames are {"msg": ..., "type": "all"|"single", "to": <userId>}, where
// "to" is present only for direct ("single") messages.
package message
