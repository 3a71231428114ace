package dht

import (
	"errors"
	"fmt"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/rs/zerolog/log"
)

// ID is the protocol string this handler registers under.
const ID = "/ipfs/kad/1.0.0"

var (
	// ErrMissingRecord is returned when a PUT_VALUE message carries no record.
	ErrMissingRecord = errors.New("dht: PUT_VALUE missing record")
	// ErrProviderPeerIDMismatch is returned when an ADD_PROVIDER peer entry's
	// claimed id does not match the peer-id component of its own addresses.
	ErrProviderPeerIDMismatch = errors.New("dht: provider peer id does not match its addresses")
	// ErrUnknownMessageType is returned for a MessageType this handler does
	// not recognize.
	ErrUnknownMessageType = errors.New("dht: unknown message type")
)

// Handler implements protocol.Handler for the Kademlia wire protocol,
// dispatching each of the six message types against the node's stores.
type Handler struct {
	self          peer.ID
	peerstore     *peer.Peerstore
	providerstore *peer.Providerstore
	datastore     datastore.Datastore
	blockstore    block.Blockstore
}

// NewHandler wires a DHT Handler to the node's collaborators.
func NewHandler(self peer.ID, ps *peer.Peerstore, provs *peer.Providerstore, ds datastore.Datastore, bs block.Blockstore) *Handler {
	return &Handler{
		self:          self,
		peerstore:     ps,
		providerstore: provs,
		datastore:     ds,
		blockstore:    bs,
	}
}

// ID returns the registered protocol string.
func (h *Handler) ID() string { return ID }

// CanHandle matches the protocol id or any sub-path of it.
func (h *Handler) CanHandle(id string) bool { return protocol.PrefixMatch(h.ID(), id) }

// Shutdown is a no-op; the Handler holds no resources of its own.
func (h *Handler) Shutdown() {}

// Handle decodes one Kademlia message (already stripped of its
// length-delimited framing by the stream's read loop), dispatches it, and
// writes back the reply (if any), length-delimited in turn, before
// signalling Stop — each exchange is a single request/response round trip,
// not a long-lived session.
func (h *Handler) Handle(msg []byte, stream protocol.Stream) protocol.Result {
	m, err := pb.UnmarshalMessage(msg)
	if err != nil {
		return protocol.Result{Stop: true, Err: fmt.Errorf("dht: decode message: %w", err)}
	}

	reply, err := h.dispatch(m)
	if err != nil {
		log.Debug().Err(err).Int("type", int(m.Type)).Msg("dht: message handling failed")
		return protocol.Result{Stop: true, Err: err}
	}
	if reply != nil {
		if err := pb.WriteDelimited(stream, reply.Marshal()); err != nil {
			return protocol.Result{Stop: true, Err: fmt.Errorf("dht: write reply: %w", err)}
		}
	}
	return protocol.Result{Stop: true}
}

func (h *Handler) dispatch(m *pb.Message) (*pb.Message, error) {
	switch m.Type {
	case pb.PutValue:
		return nil, h.putValue(m)
	case pb.GetValue:
		return h.getValue(m)
	case pb.AddProvider:
		return nil, h.addProvider(m)
	case pb.GetProviders:
		return h.getProviders(m)
	case pb.FindNode:
		return h.findNode(m)
	case pb.Ping:
		return m, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

// putValue validates the record's signature against its own author public
// key and persists it under record.Key. No reply (spec.md §4.8).
func (h *Handler) putValue(m *pb.Message) error {
	if m.Record == nil {
		return ErrMissingRecord
	}
	signed := append(append([]byte(nil), m.Record.Key...), m.Record.Value...)
	if err := secio.VerifyRecordSignature(m.Record.Author, signed, m.Record.Signature); err != nil {
		return fmt.Errorf("dht: PUT_VALUE signature: %w", err)
	}
	return h.datastore.Put(datastore.Record{
		Key:   m.Record.Key,
		Value: m.Record.Marshal(),
		Time:  m.Record.Time,
	})
}

// getValue looks up key in the local datastore; on a hit it echoes the
// message with the record populated, otherwise it falls back to the
// nearest peers known to the peerstore.
func (h *Handler) getValue(m *pb.Message) (*pb.Message, error) {
	rec, err := h.datastore.Get(m.Key)
	if err == nil {
		stored, decodeErr := pb.UnmarshalRecord(rec.Value)
		if decodeErr != nil {
			return nil, fmt.Errorf("dht: decode stored record: %w", decodeErr)
		}
		return &pb.Message{Type: pb.GetValue, Key: m.Key, Record: stored}, nil
	}
	if !errors.Is(err, datastore.ErrNotFound) {
		return nil, err
	}

	near := closerPeers(h.peerstore.Peers(), m.Key, h.self, DefaultCloserPeerLimit)
	return &pb.Message{Type: pb.GetValue, Key: m.Key, CloserPeers: toPBPeers(near)}, nil
}

// addProvider verifies each claimed provider's peer id against its own
// addresses, unions the addresses into the peerstore, and records the
// (key, peer-id) claim in the providerstore.
func (h *Handler) addProvider(m *pb.Message) error {
	for _, pp := range m.ProviderPeers {
		claimed := peer.ID(pp.ID)
		addrs, err := decodeAddrs(pp.Addrs)
		if err != nil {
			return err
		}
		if err := verifyProviderIdentity(claimed, addrs); err != nil {
			return err
		}
		h.peerstore.GetOrAdd(claimed, addrs...)
		h.providerstore.Add(m.Key, claimed, time.Now().Unix())

		if key, err := addr.EncodeBase32(m.Key); err == nil {
			log.Debug().Str("peer", claimed.String()).Str("key", key).Msg("dht: recorded provider claim")
		}
	}
	return nil
}

// getProviders includes self in provider-peers when the local blockstore
// holds key, appends every providerstore entry, and always appends the
// nearest peers to key so the caller can keep searching.
func (h *Handler) getProviders(m *pb.Message) (*pb.Message, error) {
	reply := &pb.Message{Type: pb.GetProviders, Key: m.Key}

	if hasLocalContent(h.blockstore, m.Key) {
		reply.ProviderPeers = append(reply.ProviderPeers, pb.Peer{ID: []byte(h.self)})
	}
	for _, rec := range h.providerstore.Get(m.Key) {
		reply.ProviderPeers = append(reply.ProviderPeers, pb.Peer{ID: []byte(rec.Peer)})
	}

	near := closerPeers(h.peerstore.Peers(), m.Key, h.self, DefaultCloserPeerLimit)
	reply.CloserPeers = toPBPeers(near)
	return reply, nil
}

// findNode replies with the exact peer if the peerstore knows it, else the
// nearest peers to the requested peer-id.
func (h *Handler) findNode(m *pb.Message) (*pb.Message, error) {
	reply := &pb.Message{Type: pb.FindNode, Key: m.Key}

	if p := h.peerstore.Get(peer.ID(m.Key)); p != nil {
		reply.ProviderPeers = []pb.Peer{toPBPeer(p)}
		return reply, nil
	}

	near := closerPeers(h.peerstore.Peers(), m.Key, h.self, DefaultCloserPeerLimit)
	reply.CloserPeers = toPBPeers(near)
	return reply, nil
}

func toPBPeer(p *peer.Peer) pb.Peer {
	addrs := p.Addrs()
	raw := make([][]byte, len(addrs))
	for i, a := range addrs {
		raw[i] = a.Bytes()
	}
	conn := pb.NotConnected
	if p.State() == peer.Connected {
		conn = pb.Connected
	}
	return pb.Peer{ID: []byte(p.ID()), Addrs: raw, Connection: conn}
}

func toPBPeers(peers []*peer.Peer) []pb.Peer {
	out := make([]pb.Peer, len(peers))
	for i, p := range peers {
		out[i] = toPBPeer(p)
	}
	return out
}

func decodeAddrs(raw [][]byte) ([]addr.Multiaddr, error) {
	out := make([]addr.Multiaddr, 0, len(raw))
	for _, b := range raw {
		a, err := addr.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("dht: decode provider address: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// verifyProviderIdentity checks that every address claiming a trailing
// /ipfs/<peer-id> (or /p2p/<peer-id>) component agrees with claimed
// (spec.md §4.8 "verify that its claimed peer-id matches its addresses'
// peer-id component"). Addresses carrying no peer-id component are allowed
// through unchecked; they carry nothing to contradict.
func verifyProviderIdentity(claimed peer.ID, addrs []addr.Multiaddr) error {
	for _, a := range addrs {
		id, ok := a.PeerID()
		if !ok {
			continue
		}
		if peer.ID(id) != claimed {
			return ErrProviderPeerIDMismatch
		}
	}
	return nil
}

// hasLocalContent reports whether the local blockstore holds key, trying
// key first as a complete CID and falling back to treating it as a bare
// multihash under the raw codec — the wire message carries an opaque key,
// not a typed CID (spec.md §4.8 leaves the encoding unspecified).
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
