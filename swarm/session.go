package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/barrystyle/libipfs-go/multistream"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/yamux"
	"github.com/rs/zerolog/log"
)

// Session is one peer's live yamux session, satisfying peer.Session so a
// Peerstore entry can hold it as opaque context, and routing/journal's
// ChannelOpener once wrapped by the owning Swarm's OpenStream.
type Session struct {
	swarm  *Swarm
	remote peer.ID
	yamux  *yamux.Session
}

func newSession(s *Swarm, remote peer.ID, y *yamux.Session) *Session {
	sess := &Session{swarm: s, remote: remote, yamux: y}
	y.OnGoAway(func(code uint32) {
		log.Debug().Str("peer", remote.String()).Uint32("code", code).Msg("swarm: remote sent go-away")
	})
	return sess
}

// RemotePeer returns the peer id this session was established with.
func (sess *Session) RemotePeer() peer.ID { return sess.remote }

// Close tears down the underlying yamux session; safe to call more than
// once (spec.md §5 "Handlers must be idempotent on repeated shutdown").
func (sess *Session) Close() error {
	return sess.yamux.Close()
}

// OpenStream opens a new yamux stream and negotiates protocolID over it,
// returning the stream as a protocol.Stream for the caller's application
// traffic.
func (sess *Session) OpenStream(ctx context.Context, protocolID string) (protocol.Stream, error) {
	stream, err := sess.yamux.Open()
	if err != nil {
		return nil, fmt.Errorf("swarm: open stream: %w", err)
	}

	deadline := time.Now().Add(DefaultNegotiateTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	stream.SetReadDeadline(deadline)
	stream.SetWriteDeadline(deadline)

	if err := multistream.Dial(stream, protocolID); err != nil {
		stream.Close()
		return nil, fmt.Errorf("swarm: negotiate %s: %w", protocolID, err)
	}
	stream.SetReadDeadline(time.Time{})
	stream.SetWriteDeadline(time.Time{})
	return stream, nil
}

// serve runs this session's accept loop for its lifetime (spec.md §5 "one
// per-channel handler task, spawned on first inbound data for that
// channel"): every remote-opened stream gets its own negotiation +
// dispatch goroutine, so one channel's traffic never blocks another's
// (spec.md §8 "Yamux multiplex independence").
func (sess *Session) serve() {
	defer sess.swarm.drop(sess.remote)
	for {
		stream, err := sess.yamux.Accept()
		if err != nil {
			log.Debug().Err(err).Str("peer", sess.remote.String()).Msg("swarm: session closed")
			return
		}
		go sess.handleStream(stream)
	}
}

// handleStream negotiates the application protocol on a freshly accepted
// stream, then hands it to the matching registered Handler for as many
// request/reply rounds as the handler's Result.Stop allows.
func (sess *Session) handleStream(stream *yamux.Stream) {
	deadline := time.Now().Add(DefaultNegotiateTimeout)
	stream.SetReadDeadline(deadline)
	stream.SetWriteDeadline(deadline)

	var matched protocol.Handler
	selected, err := multistream.Accept(stream, func(id string) bool {
		h, ok := sess.swarm.registry.Match(id)
		if ok {
			matched = h
		}
		return ok
	}, nil)
	if err != nil {
		log.Debug().Err(err).Str("peer", sess.remote.String()).Msg("swarm: channel negotiation failed")
		stream.Close()
		return
	}
	stream.SetReadDeadline(time.Time{})
	stream.SetWriteDeadline(time.Time{})

	for {
		msg, err := pb.ReadDelimited(stream)
		if err != nil {
			stream.Close()
			return
		}
		result := matched.Handle(msg, stream)
		if result.Err != nil {
			log.Debug().Err(result.Err).Str("peer", sess.remote.String()).Str("protocol", selected).
				Msg("swarm: handler returned error, closing channel")
			stream.Close()
			return
		}
		if result.Stop {
			stream.Close()
			return
		}
	}
}
