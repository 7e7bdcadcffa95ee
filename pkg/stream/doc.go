// Package stream implements the push transports behind distributor.Connection:
// Server-Sent Events (SSEConn) and WebSocket (WSConn).
//
// Both transports get a random uuid as connection id, write one event per
// message and keep the connection alive with a heartbeat. Serve blocks the
// HTTP handler until the client goes away; the caller then reports the
// connection closed to the distributor.
package stream
