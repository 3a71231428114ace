// Package identify implements the "/ipfs/id/1.0.0" protocol referenced in
// spec.md §3's data-flow diagram ("handler (DHT/Journal/Identify)") and
// registered by swarm alongside Kademlia and Journal (spec.md §4.7). A
// dialer opens a channel and sends an empty request; the acceptor answers
// with its own public key, listen addresses, and supported protocol ids —
// the same request/reply shape dht.Handler and journal.Handler use, so it
// rides the same per-channel length-delimited framing swarm applies
// uniformly to every registered protocol.
package identify

import (
	"fmt"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/secio"
)

// ID is the registered protocol string.
const ID = "/ipfs/id/1.0.0"

// Handler answers inbound identify requests with this node's own
// public key, listen addresses, and the protocol ids its registry serves.
type Handler struct {
	identity    *secio.Identity
	listenAddrs func() []addr.Multiaddr
	protocols   func() []string
}

// NewHandler builds an identify Handler. listenAddrs and protocols are
// callbacks rather than static slices because both can change after the
// swarm starts listening (e.g. a second listen address is added).
func NewHandler(identity *secio.Identity, listenAddrs func() []addr.Multiaddr, protocols func() []string) *Handler {
	return &Handler{identity: identity, listenAddrs: listenAddrs, protocols: protocols}
}

func (h *Handler) ID() string { return ID }

func (h *Handler) CanHandle(id string) bool { return protocol.PrefixMatch(h.ID(), id) }

func (h *Handler) Shutdown() {}

// Handle ignores the (empty) request payload and writes back this node's
// identify reply, framed the same way dht.Handler/journal.Handler frame
// theirs.
func (h *Handler) Handle(msg []byte, stream protocol.Stream) protocol.Result {
	reply := &pb.IdentifyMessage{
		PublicKey: h.identity.PublicKeyMessage(),
		Protocols: h.protocols(),
	}
	for _, a := range h.listenAddrs() {
		reply.ListenAddrs = append(reply.ListenAddrs, a.Bytes())
	}
	if err := pb.WriteDelimited(stream, reply.Marshal()); err != nil {
		return protocol.Result{Stop: true, Err: fmt.Errorf("identify: write reply: %w", err)}
	}
	return protocol.Result{Stop: true}
}
