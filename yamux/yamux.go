// Package yamux implements the stream-multiplexing session that rides on
// top of a secio-encrypted connection (spec.md §4.5), grounded in
// original_source/libp2p/yamux/session.c and yamux/stream.c.
package yamux

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindowSize is the initial per-stream receive window, 256 KiB per
// spec.md §4.5.
const DefaultWindowSize = 256 * 1024

// Session-level keepalive timing (spec.md §5: "Session-level ping keeps
// idle sessions alive; no pong within 30 s triggers session close").
const (
	pingInterval = 15 * time.Second
	pongTimeout  = 30 * time.Second
)

// Role distinguishes which side of a session opened the underlying
// connection, fixing stream-id parity (spec.md §3 data model).
type Role int

const (
	Client Role = iota
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// StreamState is a yamux stream's position in the lifecycle table of
// spec.md §4.5.
type StreamState int

const (
	StreamInited StreamState = iota
	StreamSynSent
	StreamSynRecv
	StreamEstablished
	StreamClosing
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamInited:
		return "inited"
	case StreamSynSent:
		return "syn-sent"
	case StreamSynRecv:
		return "syn-recv"
	case StreamEstablished:
		return "established"
	case StreamClosing:
		return "closing"
	case StreamClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GoAway error codes (spec.md §4.5).
const (
	GoAwayNormal        uint32 = 0
	GoAwayProtocolError uint32 = 1
	GoAwayInternalError uint32 = 2
)

var (
	// ErrSessionClosed is returned by any operation attempted after the
	// session received or sent a GO-AWAY.
	ErrSessionClosed = errors.New("yamux: session closed")
	// ErrStreamClosed is returned by Read/Write on a stream past its
	// closed or reset state.
	ErrStreamClosed = errors.New("yamux: stream closed")
	// ErrStreamReset is the close reason recorded when a peer RSTs a stream.
	ErrStreamReset = errors.New("yamux: stream reset")
	// ErrTimeout is returned when a read or write exceeds its deadline.
	ErrTimeout = timeoutError{}
	// ErrProtocol is returned when an inbound frame violates the session
	// or stream state machine (spec.md §4.5's "protocol error" paths).
	ErrProtocol = errors.New("yamux: protocol error")
	// ErrBacklogFull is returned by Open when the session has reached its
	// accept backlog capacity.
	ErrBacklogFull = errors.New("yamux: stream backlog full")
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "yamux: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
