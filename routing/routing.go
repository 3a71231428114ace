// Package routing implements the public routing facade of spec.md §4.10:
// FindProviders, FindPeer, Provide, GetValue, PutValue, Ping, and Bootstrap,
// in an online (network fan-out) and offline (local-only) flavor — the same
// online/offline split the teacher repo draws between its live exchange and
// `github.com/ipfs/go-ipfs-exchange-offline` import.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
)

// ErrNotFound is returned when a routing lookup exhausts every avenue
// (local store, then every connected peer) without success.
var ErrNotFound = errors.New("routing: not found")

// ErrOffline is returned by Offline's network-only operations.
var ErrOffline = errors.New("routing: offline")

// KademliaProtocolID is the application protocol a ChannelOpener dials to
// reach a peer's DHT handler.
const KademliaProtocolID = "/ipfs/kad/1.0.0"

// ChannelOpener opens an application-protocol channel to a peer, dialing
// and upgrading the underlying connection if the swarm does not already
// have one. Implemented by *swarm.Swarm; named here to keep routing free
// of a dependency on the swarm package.
type ChannelOpener interface {
	OpenStream(ctx context.Context, id peer.ID, protocolID string) (protocol.Stream, error)
}

// Routing is the facade the node assembles and hands to callers, switched
// between Online and Offline by node mode (spec.md §4.10).
type Routing interface {
	FindProviders(ctx context.Context, key []byte) ([]peer.ID, error)
	FindPeer(ctx context.Context, id peer.ID) (*peer.Peer, error)
	Provide(ctx context.Context, key []byte) error
	GetValue(ctx context.Context, key []byte) ([]byte, error)
	PutValue(ctx context.Context, key, value []byte) error
	Ping(ctx context.Context, id peer.ID) (time.Duration, error)
	Bootstrap(ctx context.Context, addrs []addr.Multiaddr) error
}
