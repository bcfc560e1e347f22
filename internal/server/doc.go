// Package server implements the WebSocket transport and HTTP surface of
// the chat relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. The hub owns the
// connection set and room channels and drives the session coordinator in
// internal/relay from a single event loop.
package server
