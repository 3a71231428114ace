package peer

import (
	"sync"

	"github.com/barrystyle/libipfs-go/addr"
)

// Peerstore is the thread-safe, insertion-ordered id -> Peer mapping of
// spec.md §3. GetOrAdd merges addresses into an existing entry instead of
// replacing it.
type Peerstore struct {
	mu    sync.RWMutex
	byID  map[ID]*Peer
	order []ID
}

// NewPeerstore creates an empty Peerstore.
func NewPeerstore() *Peerstore {
	return &Peerstore{byID: make(map[ID]*Peer)}
}

// GetOrAdd returns the existing Peer for id, creating one (and recording it
// at the end of iteration order) if this is the first time id is seen.
// Any addrs passed are unioned into the peer's known address set.
func (ps *Peerstore) GetOrAdd(id ID, addrs ...addr.Multiaddr) *Peer {
	ps.mu.Lock()
	p, ok := ps.byID[id]
	if !ok {
		p = New(id)
		ps.byID[id] = p
		ps.order = append(ps.order, id)
	}
	ps.mu.Unlock()
	p.AddAddrs(addrs...)
	return p
}

// Get returns the Peer for id, or nil if unknown.
func (ps *Peerstore) Get(id ID) *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.byID[id]
}

// Has reports whether id is known.
func (ps *Peerstore) Has(id ID) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	_, ok := ps.byID[id]
	return ok
}

// Peers returns an insertion-ordered snapshot of every known Peer. The
// routing facade borrows this snapshot for fan-out (spec.md §5) without
// holding the store's lock across I/O.
func (ps *Peerstore) Peers() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]*Peer, 0, len(ps.order))
	for _, id := range ps.order {
		out = append(out, ps.byID[id])
	}
	return out
}

// Connected returns the subset of Peers() currently in the Connected state.
func (ps *Peerstore) Connected() []*Peer {
	all := ps.Peers()
	out := all[:0:0]
	for _, p := range all {
		if p.State() == Connected {
			out = append(out, p)
		}
	}
	return out
}
