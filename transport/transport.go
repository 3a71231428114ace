// Package transport opens raw byte streams to a multiaddress, pluggable
// by address family (spec.md §4.4 "C4 Transport dialer").
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/barrystyle/libipfs-go/addr"
)

// Dialer opens a raw byte stream to a multiaddress.
type Dialer interface {
	// CanDial reports whether this dialer handles a.
	CanDial(a addr.Multiaddr) bool
	// Dial opens a connection, honoring ctx's deadline.
	Dial(ctx context.Context, a addr.Multiaddr) (net.Conn, error)
	// Listen opens a listener bound to a.
	Listen(a addr.Multiaddr) (net.Listener, error)
}

// Registry dispatches to the first registered Dialer that can handle a
// given address, restoring the original's multiple-transport-kind
// dispatch (libp2p/conn/transport_dialer.c) even though only TCP ships a
// concrete implementor (spec.md Non-goals: "Transport discovery beyond TCP").
type Registry struct {
	mu      sync.RWMutex
	dialers []Dialer
}

// NewRegistry creates a Registry seeded with the given dialers, tried in order.
func NewRegistry(dialers ...Dialer) *Registry {
	return &Registry{dialers: dialers}
}

// Register adds a dialer to the end of the dispatch order.
func (r *Registry) Register(d Dialer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialers = append(r.dialers, d)
}

// ErrNoTransport is returned when no registered dialer can handle an address.
type ErrNoTransport struct{ Addr string }

func (e ErrNoTransport) Error() string {
	return fmt.Sprintf("transport: no dialer can handle %s", e.Addr)
}

// Dial resolves a to a transport and opens a connection.
func (r *Registry) Dial(ctx context.Context, a addr.Multiaddr) (net.Conn, error) {
	d := r.pick(a)
	if d == nil {
		return nil, ErrNoTransport{Addr: a.String()}
	}
	return d.Dial(ctx, a)
}

// Listen resolves a to a transport and opens a listener.
func (r *Registry) Listen(a addr.Multiaddr) (net.Listener, error) {
	d := r.pick(a)
	if d == nil {
		return nil, ErrNoTransport{Addr: a.String()}
	}
	return d.Listen(a)
}

func (r *Registry) pick(a addr.Multiaddr) Dialer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.dialers {
		if d.CanDial(a) {
			return d
		}
	}
	return nil
}
