// Package swarm implements per-peer session lifecycle of spec.md §4.7:
// accept a raw byte stream, upgrade it through the negotiation stack
// (multistream → secio → multistream → yamux), dispatch the resulting
// session's channels to the node's protocol registry, and tear it down on
// close or protocol error. Grounded in node/popn.go's host/connection-
// manager wiring (the teacher's own accept/dial/register sequence,
// generalized from its single bitswap-style exchange protocol to the
// full multi-protocol registry spec.md §4.6 describes).
package swarm

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/multistream"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/barrystyle/libipfs-go/transport"
	"github.com/barrystyle/libipfs-go/yamux"
	"github.com/rs/zerolog/log"
)

// SecioProtocolID and YamuxProtocolID are the multistream ids the two
// negotiation pivots select, before and after the secio handshake
// (spec.md §4.7 "negotiate multistream → negotiate secio → negotiate
// multistream → negotiate yamux").
const (
	SecioProtocolID = "/secio/1.0.0"
	YamuxProtocolID = "/yamux/1.0.0"
)

// DefaultNegotiateTimeout bounds each handshake phase (spec.md §4.7
// "Timeouts: per-phase deadlines (default 5-10s)").
const DefaultNegotiateTimeout = 10 * time.Second

// Swarm owns every live per-peer Session plus the listeners and dialers
// that create them.
type Swarm struct {
	identity  *secio.Identity
	peerstore *peer.Peerstore
	registry  *protocol.Registry
	transport *transport.Registry

	mu          sync.Mutex
	listenAddrs []addr.Multiaddr
	listeners   []net.Listener

	sessionsMu sync.Mutex
	sessions   map[peer.ID]*Session
}

// New builds a Swarm. registry must already carry every protocol handler
// the node serves (dht, journal, identify, ...); Listen/Dial register no
// handlers of their own.
func New(identity *secio.Identity, ps *peer.Peerstore, registry *protocol.Registry, transportRegistry *transport.Registry) *Swarm {
	return &Swarm{
		identity:  identity,
		peerstore: ps,
		registry:  registry,
		transport: transportRegistry,
		sessions:  make(map[peer.ID]*Session),
	}
}

// ListenAddrs returns a snapshot of every address this swarm is currently
// listening on, the set identify.Handler and routing.Online advertise to
// peers.
func (s *Swarm) ListenAddrs() []addr.Multiaddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]addr.Multiaddr, len(s.listenAddrs))
	copy(out, s.listenAddrs)
	return out
}

// Protocols returns the protocol ids this swarm's registry currently serves.
func (s *Swarm) Protocols() []string {
	return s.registry.IDs()
}

// Listen opens a listener on a and starts accepting inbound connections,
// each upgraded through the full negotiation stack on its own goroutine
// (spec.md §5 "one accept thread per listener").
func (s *Swarm) Listen(a addr.Multiaddr) error {
	l, err := s.transport.Listen(a)
	if err != nil {
		return fmt.Errorf("swarm: listen on %s: %w", a.String(), err)
	}
	s.mu.Lock()
	s.listenAddrs = append(s.listenAddrs, a)
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	go s.acceptLoop(l)
	return nil
}

func (s *Swarm) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			log.Debug().Err(err).Msg("swarm: listener closed")
			return
		}
		go s.acceptConn(conn)
	}
}

func (s *Swarm) acceptConn(conn net.Conn) {
	sess, remoteID, err := s.upgradeServer(conn)
	if err != nil {
		log.Debug().Err(err).Msg("swarm: inbound upgrade failed")
		conn.Close()
		return
	}
	log.Info().Str("peer", remoteID.String()).Msg("swarm: inbound session established")
	s.adopt(remoteID, sess)
	sess.serve()
}

// upgradeServer runs the acceptor side of the negotiation stack over a
// freshly accepted raw connection.
func (s *Swarm) upgradeServer(conn net.Conn) (*Session, peer.ID, error) {
	conn.SetDeadline(time.Now().Add(DefaultNegotiateTimeout))
	if _, err := multistream.Accept(conn, func(id string) bool { return id == SecioProtocolID }, nil); err != nil {
		return nil, "", fmt.Errorf("swarm: negotiate secio: %w", err)
	}

	sConn, remoteID, err := secio.Handshake(conn, s.identity)
	if err != nil {
		return nil, "", fmt.Errorf("swarm: secio handshake: %w", err)
	}

	sConn.SetDeadline(time.Now().Add(DefaultNegotiateTimeout))
	if _, err := multistream.Accept(sConn, func(id string) bool { return id == YamuxProtocolID }, nil); err != nil {
		return nil, "", fmt.Errorf("swarm: negotiate yamux: %w", err)
	}
	sConn.SetDeadline(time.Time{})

	ySession := yamux.NewSession(sConn, yamux.Server)
	return newSession(s, remoteID, ySession), remoteID, nil
}

// Dial establishes (or reuses) a session with id, trying every address
// the peerstore currently knows for it.
func (s *Swarm) Dial(ctx context.Context, id peer.ID) (*Session, error) {
	if sess, ok := s.existingSession(id); ok {
		return sess, nil
	}

	p := s.peerstore.Get(id)
	if p == nil {
		return nil, fmt.Errorf("swarm: dial %s: no known addresses", id)
	}
	addrs := p.Addrs()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("swarm: dial %s: no known addresses", id)
	}

	p.SetState(peer.Connecting)
	var lastErr error
	for _, a := range addrs {
		sess, gotID, err := s.dialAddr(ctx, a)
		if err != nil {
			lastErr = err
			continue
		}
		if gotID != id {
			sess.Close()
			lastErr = fmt.Errorf("swarm: dial %s: remote identified as %s", id, gotID)
			continue
		}
		s.adopt(id, sess)
		go sess.serve()
		return sess, nil
	}
	p.SetState(peer.CannotConnect)
	return nil, fmt.Errorf("swarm: dial %s: %w", id, lastErr)
}

// dialAddr runs the dialer side of the negotiation stack against a single address.
func (s *Swarm) dialAddr(ctx context.Context, a addr.Multiaddr) (*Session, peer.ID, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DefaultNegotiateTimeout)
	defer cancel()
	conn, err := s.transport.Dial(dialCtx, a)
	if err != nil {
		return nil, "", fmt.Errorf("swarm: transport dial: %w", err)
	}

	conn.SetDeadline(time.Now().Add(DefaultNegotiateTimeout))
	if err := multistream.Dial(conn, SecioProtocolID); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("swarm: negotiate secio: %w", err)
	}

	sConn, remoteID, err := secio.Handshake(conn, s.identity)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("swarm: secio handshake: %w", err)
	}

	sConn.SetDeadline(time.Now().Add(DefaultNegotiateTimeout))
	if err := multistream.Dial(sConn, YamuxProtocolID); err != nil {
		sConn.Close()
		return nil, "", fmt.Errorf("swarm: negotiate yamux: %w", err)
	}
	sConn.SetDeadline(time.Time{})

	ySession := yamux.NewSession(sConn, yamux.Client)
	return newSession(s, remoteID, ySession), remoteID, nil
}

// OpenStream satisfies routing.ChannelOpener, journal.ChannelOpener, and
// identify.ChannelOpener: dial (or reuse) a session with id, then open an
// application-protocol channel on it.
func (s *Swarm) OpenStream(ctx context.Context, id peer.ID, protocolID string) (protocol.Stream, error) {
	sess, err := s.Dial(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.OpenStream(ctx, protocolID)
}

func (s *Swarm) existingSession(id peer.ID) (*Session, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// adopt registers sess as the live session for id, updating the peerstore
// entry's connection state and session context.
func (s *Swarm) adopt(id peer.ID, sess *Session) {
	s.sessionsMu.Lock()
	s.sessions[id] = sess
	s.sessionsMu.Unlock()

	p := s.peerstore.GetOrAdd(id)
	p.SetState(peer.Connected)
	p.SetSession(sess)
}

// drop removes id's session entry and marks the peerstore not-connected,
// called once a session's serve loop returns.
func (s *Swarm) drop(id peer.ID) {
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()

	if p := s.peerstore.Get(id); p != nil {
		p.ClearSession()
		p.SetState(peer.NotConnected)
	}
}

// Close tears down every live session and listener.
func (s *Swarm) Close() error {
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()
	for _, l := range listeners {
		l.Close()
	}

	s.sessionsMu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
	return nil
}
