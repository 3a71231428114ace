package peer

import (
	"sync"

	"github.com/barrystyle/libipfs-go/addr"
)

// ConnState is a peer's connection lifecycle state (spec.md §3).
type ConnState int

const (
	NotConnected ConnState = iota
	Connecting
	Connected
	CannotConnect
)

func (s ConnState) String() string {
	switch s {
	case NotConnected:
		return "not-connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case CannotConnect:
		return "cannot-connect"
	default:
		return "unknown"
	}
}

// Session is the live per-peer session context a Peer optionally carries
// while connected (spec.md §3 "Session context"). It is implemented by
// *swarm.Session; defined here as a narrow interface to avoid an import
// cycle between peer and swarm.
type Session interface {
	Close() error
}

// Peer is one known network identity: its addresses, connection state,
// and (while connected) its live session.
type Peer struct {
	mu      sync.Mutex
	id      ID
	addrs   []addr.Multiaddr
	state   ConnState
	session Session
	isLocal bool
}

// New creates a Peer known only by its id.
func New(id ID) *Peer {
	return &Peer{id: id, state: NotConnected}
}

// ID returns the peer's identity.
func (p *Peer) ID() ID { return p.id }

// Addrs returns a snapshot of known addresses.
func (p *Peer) Addrs() []addr.Multiaddr {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]addr.Multiaddr, len(p.addrs))
	copy(out, p.addrs)
	return out
}

// AddAddrs unions new addresses into the known set (spec.md §3: "addresses
// union, do not replace"), preserving insertion order and skipping duplicates.
func (p *Peer) AddAddrs(addrs ...addr.Multiaddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range addrs {
		if a.IsZero() {
			continue
		}
		dup := false
		for _, existing := range p.addrs {
			if existing.String() == a.String() {
				dup = true
				break
			}
		}
		if !dup {
			p.addrs = append(p.addrs, a)
		}
	}
}

// State returns the current connection state.
func (p *Peer) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the connection state.
func (p *Peer) SetState(s ConnState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// SetSession attaches the live session context on connect.
func (p *Peer) SetSession(s Session) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
}

// ClearSession detaches the session on disconnect.
func (p *Peer) ClearSession() {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
}

// SessionContext returns the live session context, or nil if not connected.
func (p *Peer) SessionContext() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// SetLocal marks whether this peer represents the local node itself.
func (p *Peer) SetLocal(v bool) {
	p.mu.Lock()
	p.isLocal = v
	p.mu.Unlock()
}

// IsLocal reports whether this peer represents the local node.
func (p *Peer) IsLocal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isLocal
}
