// Package dht implements the Kademlia message handlers of spec.md §4.8:
// PUT_VALUE, GET_VALUE, ADD_PROVIDER, GET_PROVIDERS, FIND_NODE, PING.
// Grounded in original_source/libp2p's dht_protocol handlers, with the
// closer-peer ranking the source itself is missing (spec.md §9's Open
// Question: "a faithful implementation should add XOR-distance ranking to
// reduce query breadth").
package dht

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/barrystyle/libipfs-go/peer"
)

// DefaultCloserPeerLimit is the "up to 20 nearest" bound spec.md §4.8 names
// for GET_VALUE, GET_PROVIDERS, and FIND_NODE fallback replies.
const DefaultCloserPeerLimit = 20

// distance returns XOR(SHA-256(id), key), zero-extending the shorter operand
// so the comparison is always defined regardless of key length.
func distance(id peer.ID, key []byte) []byte {
	sum := sha256.Sum256([]byte(id))
	return xor(sum[:], key)
}

func xor(a, b []byte) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		out[i] = x ^ y
	}
	return out
}

// closerPeers ranks candidates by XOR-distance to key, nearest first,
// breaking ties lexicographically on the peer id (spec.md §9 "Tie-breaking
// on XOR-distance: lexicographic on peer-id after XOR"), excluding self and
// truncating to limit.
func closerPeers(candidates []*peer.Peer, key []byte, self peer.ID, limit int) []*peer.Peer {
	filtered := make([]*peer.Peer, 0, len(candidates))
	for _, p := range candidates {
		if p.ID() == self {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.Slice(filtered, func(i, j int) bool {
		di := distance(filtered[i].ID(), key)
		dj := distance(filtered[j].ID(), key)
		if c := bytes.Compare(di, dj); c != 0 {
			return c < 0
		}
		return filtered[i].ID() < filtered[j].ID()
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
