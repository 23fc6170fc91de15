// Package server implements the HTTP and WebSocket boundary of the Parley
// chat service.
//
// The Hub tracks live connections and per-conversation subscriber sets and
// fans outbound frames to them; Client runs one connection's session state
// machine over its read/write pumps; App is the explicit application context
// holding configuration, the hub, the conversation registry, and the
// message store.
package server
