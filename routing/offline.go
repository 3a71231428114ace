package routing

import (
	"context"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Offline answers every routing query from local state only, never dialing
// a peer. It backs a node run with no network (or no DHT peers configured
// yet), the same role `go-ipfs-exchange-offline` plays for the teacher's
// block exchange.
type Offline struct {
	self          peer.ID
	peerstore     *peer.Peerstore
	providerstore *peer.Providerstore
	datastore     datastore.Datastore
	blockstore    block.Blockstore
}

// NewOffline builds a local-only Routing facade.
func NewOffline(self peer.ID, ps *peer.Peerstore, provs *peer.Providerstore, ds datastore.Datastore, bs block.Blockstore) *Offline {
	return &Offline{self: self, peerstore: ps, providerstore: provs, datastore: ds, blockstore: bs}
}

// FindProviders returns the locally known providers for key, plus self if
// the local blockstore holds it.
func (o *Offline) FindProviders(ctx context.Context, key []byte) ([]peer.ID, error) {
	var out []peer.ID
	if hasLocalContent(o.blockstore, key) {
		out = append(out, o.self)
	}
	for _, rec := range o.providerstore.Get(key) {
		out = append(out, rec.Peer)
	}
	return out, nil
}

// FindPeer returns the locally known Peer for id, or ErrNotFound.
func (o *Offline) FindPeer(ctx context.Context, id peer.ID) (*peer.Peer, error) {
	if p := o.peerstore.Get(id); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

// Provide is a no-op: with no peers to announce to, there is nothing to do
// beyond what the local blockstore already reflects.
func (o *Offline) Provide(ctx context.Context, key []byte) error {
	return nil
}

// GetValue reads key straight from the local datastore.
func (o *Offline) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	rec, err := o.datastore.Get(key)
	if err != nil {
		if err == datastore.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.Value, nil
}

// PutValue writes (key, value) straight to the local datastore.
func (o *Offline) PutValue(ctx context.Context, key, value []byte) error {
	return o.datastore.Put(datastore.Record{Key: key, Value: value, Time: time.Now().Unix()})
}

// Ping always fails offline: there is no peer to round-trip with.
func (o *Offline) Ping(ctx context.Context, id peer.ID) (time.Duration, error) {
	return 0, ErrOffline
}

// Bootstrap always fails offline: there is no transport to dial out on.
func (o *Offline) Bootstrap(ctx context.Context, addrs []addr.Multiaddr) error {
	return ErrOffline
}

// hasLocalContent reports whether the local blockstore holds key, trying it
// first as a complete CID and falling back to a bare multihash under the
// raw codec, matching the same ambiguity dht.hasLocalContent resolves for
// GET_PROVIDERS — the wire key carries no explicit encoding tag.
func hasLocalContent(bs block.Blockstore, key []byte) bool {
	if c, err := cid.Cast(key); err == nil {
		if ok, err := bs.Has(c); err == nil && ok {
			return true
		}
	}
	if _, err := mh.Cast(key); err == nil {
		if ok, err := bs.Has(cid.NewCidV1(cid.Raw, key)); err == nil && ok {
			return true
		}
	}
	return false
}
