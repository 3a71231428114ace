package routing

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/rs/zerolog/log"
)

// pingPayloadSize is the length of the random payload sent with each PING,
// echoed back to confirm the round trip (spec.md §4.10 "send PING with
// random length").
const pingPayloadSize = 32

// pingTimeout bounds how long Ping waits for the PING-ACK.
const pingTimeout = 10 * time.Second

// Online fans outbound routing operations over connected peers via the DHT
// wire protocol, falling back to local stores first wherever spec.md §4.10
// calls for a "local first" check.
type Online struct {
	self          peer.ID
	identity      *secio.Identity
	peerstore     *peer.Peerstore
	providerstore *peer.Providerstore
	datastore     datastore.Datastore
	blockstore    block.Blockstore
	opener        ChannelOpener
	listenAddrs   func() []addr.Multiaddr
}

// NewOnline builds a network-backed Routing facade. listenAddrs supplies
// the node's own advertised addresses for Provide/Bootstrap.
func NewOnline(self peer.ID, id *secio.Identity, ps *peer.Peerstore, provs *peer.Providerstore, ds datastore.Datastore, bs block.Blockstore, opener ChannelOpener, listenAddrs func() []addr.Multiaddr) *Online {
	return &Online{
		self:          self,
		identity:      id,
		peerstore:     ps,
		providerstore: provs,
		datastore:     ds,
		blockstore:    bs,
		opener:        opener,
		listenAddrs:   listenAddrs,
	}
}

// FindProviders checks the local providerstore/blockstore first, then asks
// every connected peer's GET_PROVIDERS concurrently, returning on the first
// non-empty reply (spec.md §4.10).
func (o *Online) FindProviders(ctx context.Context, key []byte) ([]peer.ID, error) {
	var local []peer.ID
	if hasLocalContent(o.blockstore, key) {
		local = append(local, o.self)
	}
	for _, rec := range o.providerstore.Get(key) {
		local = append(local, rec.Peer)
	}
	if len(local) > 0 {
		return local, nil
	}

	req := &pb.Message{Type: pb.GetProviders, Key: key}
	reply, err := o.fanOut(ctx, req, func(m *pb.Message) bool {
		return len(m.ProviderPeers) > 0
	})
	if err != nil {
		return nil, err
	}

	out := make([]peer.ID, 0, len(reply.ProviderPeers))
	for _, p := range reply.ProviderPeers {
		out = append(out, peer.ID(p.ID))
	}
	return out, nil
}

// FindPeer checks the peerstore first, then asks every connected peer's
// FIND_NODE concurrently, returning on the first hit.
func (o *Online) FindPeer(ctx context.Context, id peer.ID) (*peer.Peer, error) {
	if p := o.peerstore.Get(id); p != nil {
		return p, nil
	}

	req := &pb.Message{Type: pb.FindNode, Key: []byte(id)}
	reply, err := o.fanOut(ctx, req, func(m *pb.Message) bool {
		return len(m.ProviderPeers) > 0
	})
	if err != nil {
		return nil, err
	}
	if len(reply.ProviderPeers) == 0 {
		return nil, ErrNotFound
	}

	found := reply.ProviderPeers[0]
	addrs, err := decodeAddrs(found.Addrs)
	if err != nil {
		return nil, err
	}
	return o.peerstore.GetOrAdd(peer.ID(found.ID), addrs...), nil
}

// Provide announces self as a provider of key to every connected,
// non-local peer, best-effort (spec.md §4.10).
func (o *Online) Provide(ctx context.Context, key []byte) error {
	selfAddrs := o.listenAddrs()
	raw := make([][]byte, len(selfAddrs))
	for i, a := range selfAddrs {
		raw[i] = a.Bytes()
	}
	msg := &pb.Message{
		Type: pb.AddProvider,
		Key:  key,
		ProviderPeers: []pb.Peer{
			{ID: []byte(o.self), Addrs: raw},
		},
	}

	for _, p := range o.peerstore.Connected() {
		if p.IsLocal() {
			continue
		}
		if err := o.send(ctx, p.ID(), msg); err != nil {
			log.Debug().Err(err).Str("peer", p.ID().String()).Msg("routing: provide failed")
		}
	}
	return nil
}

// GetValue runs FindProviders, then tries each provider in turn, returning
// the first value found (spec.md §4.10).
func (o *Online) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	providers, err := o.FindProviders(ctx, key)
	if err != nil {
		return nil, err
	}

	for _, id := range providers {
		if id == o.self {
			rec, err := o.datastore.Get(key)
			if err == nil {
				return rec.Value, nil
			}
			continue
		}

		reply, err := o.request(ctx, id, &pb.Message{Type: pb.GetValue, Key: key})
		if err != nil {
			continue
		}
		if reply.Record != nil {
			return reply.Record.Value, nil
		}
	}
	return nil, ErrNotFound
}

// PutValue signs (key, value) under the node's identity, stores it
// locally, and replicates it to every connected peer, best-effort.
func (o *Online) PutValue(ctx context.Context, key, value []byte) error {
	signed := append(append([]byte(nil), key...), value...)
	sig, err := o.identity.Sign(signed)
	if err != nil {
		return err
	}
	rec := &pb.Record{
		Key:       key,
		Value:     value,
		Author:    o.identity.PublicKeyMessage(),
		Signature: sig,
		Time:      time.Now().Unix(),
	}
	if err := o.datastore.Put(datastore.Record{Key: key, Value: rec.Marshal(), Time: rec.Time}); err != nil {
		return err
	}

	msg := &pb.Message{Type: pb.PutValue, Key: key, Record: rec}
	for _, p := range o.peerstore.Connected() {
		if p.IsLocal() {
			continue
		}
		if err := o.send(ctx, p.ID(), msg); err != nil {
			log.Debug().Err(err).Str("peer", p.ID().String()).Msg("routing: put_value replication failed")
		}
	}
	return nil
}

// Ping opens a channel to id, sends a PING with a random payload, and
// measures the round trip to the matching PING-ACK.
func (o *Online) Ping(ctx context.Context, id peer.ID) (time.Duration, error) {
	payload := make([]byte, pingPayloadSize)
	if _, err := rand.Read(payload); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.request(ctx, id, &pb.Message{Type: pb.Ping, Key: payload})
	if err != nil {
		return 0, err
	}
	if len(reply.Key) != len(payload) {
		return 0, errors.New("routing: ping reply length mismatch")
	}
	return time.Since(start), nil
}

// Bootstrap adds each address's peer-id to the peerstore and best-effort
// pings it, which forces the swarm to dial and upgrade the connection.
func (o *Online) Bootstrap(ctx context.Context, addrs []addr.Multiaddr) error {
	for _, a := range addrs {
		idStr, ok := a.PeerID()
		if !ok {
			continue
		}
		id, err := peer.Decode(idStr)
		if err != nil {
			continue
		}
		o.peerstore.GetOrAdd(id, a)
		if _, err := o.Ping(ctx, id); err != nil {
			log.Debug().Err(err).Str("peer", id.String()).Msg("routing: bootstrap dial failed")
		}
	}
	return nil
}

func decodeAddrs(raw [][]byte) ([]addr.Multiaddr, error) {
	out := make([]addr.Multiaddr, 0, len(raw))
	for _, b := range raw {
		a, err := addr.FromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// request opens a channel to id, writes one Kademlia message, and reads
// back exactly one reply.
func (o *Online) request(ctx context.Context, id peer.ID, msg *pb.Message) (*pb.Message, error) {
	stream, err := o.opener.OpenStream(ctx, id, KademliaProtocolID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := pb.WriteDelimited(stream, msg.Marshal()); err != nil {
		return nil, err
	}
	raw, err := pb.ReadDelimited(stream)
	if err != nil {
		return nil, err
	}
	return pb.UnmarshalMessage(raw)
}

func (o *Online) send(ctx context.Context, id peer.ID, msg *pb.Message) error {
	stream, err := o.opener.OpenStream(ctx, id, KademliaProtocolID)
	if err != nil {
		return err
	}
	defer stream.Close()
	return pb.WriteDelimited(stream, msg.Marshal())
}

// fanOut sends req to every connected peer concurrently, returning the
// first reply satisfying accept, or ErrNotFound if none do.
func (o *Online) fanOut(ctx context.Context, req *pb.Message, accept func(*pb.Message) bool) (*pb.Message, error) {
	peers := o.peerstore.Connected()
	if len(peers) == 0 {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *pb.Message, len(peers))
	for _, p := range peers {
		p := p
		go func() {
			reply, err := o.request(ctx, p.ID(), req)
			if err != nil || !accept(reply) {
				results <- nil
				return
			}
			results <- reply
		}()
	}

	for range peers {
		select {
		case reply := <-results:
			if reply != nil {
				return reply, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrNotFound
}
