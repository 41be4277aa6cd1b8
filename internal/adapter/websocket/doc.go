// Package websocket carries session frames over gorilla/websocket.
//
// A Client is the outbox of one session: frames are encoded and queued
// without blocking, then written by a dedicated goroutine with a write
// deadline. The Hub tracks every live client for shutdown.
package websocket
