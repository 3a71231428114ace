// Package bitswap registers the "/ipfs/bitswap/1.0.0" protocol slot spec.md
// §4.7 requires the swarm to hold open ("registers handlers for
// .../id/1.0.0, .../kad/1.0.0, .../journalio/1.0.0, .../bitswap/1.0.0, and
// returns"). Credit-accounted block exchange itself is an explicit Non-goal
// (spec.md §1), so Handler answers any inbound channel by closing it
// immediately rather than implementing want-lists/ledgers — the same shape
// journal.BlockFetcher's narrow interface keeps the rest of the core free
// of exchange machinery.
package bitswap

import "github.com/barrystyle/libipfs-go/protocol"

// ID is the registered protocol string.
const ID = "/ipfs/bitswap/1.0.0"

// Handler holds the bitswap registry slot open without implementing block
// exchange.
type Handler struct{}

// NewHandler builds the no-op bitswap registry slot.
func NewHandler() *Handler { return &Handler{} }

func (h *Handler) ID() string { return ID }

func (h *Handler) CanHandle(id string) bool { return protocol.PrefixMatch(h.ID(), id) }

func (h *Handler) Shutdown() {}

// Handle accepts the channel and closes it without reading or answering —
// block exchange accounting is out of scope (spec.md §1 Non-goals), so
// there is nothing to do beyond holding the protocol id registered.
func (h *Handler) Handle(msg []byte, stream protocol.Stream) protocol.Result {
	return protocol.Result{Stop: true}
}
