// Package relay is a small chat server speaking the same protocol as the
// client: clients connect with ?id=<user>, every join or leave broadcasts
// the roster, and chat frames are relayed to everyone or to one user.
//
// It exists for local development and end-to-end tests; it keeps no history.
package relay
