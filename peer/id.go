// Package peer implements the node's Peer identity and the Peerstore /
// Providerstore collections of spec.md §3.
package peer

import (
	"errors"

	"github.com/btcsuite/btcutil/base58"
	mh "github.com/multiformats/go-multihash"
)

// ID is a base58-encoded multihash of a peer's DER-encoded public key
// (spec.md §6 "Identity and addressing").
type ID string

// String returns the base58 text form.
func (id ID) String() string { return string(id) }

// ErrEmptyKey is returned when deriving an ID from an empty public key.
var ErrEmptyKey = errors.New("peer: empty public key")

// IDFromPublicKey derives the peer ID: base58(multihash(sha2-256, der)).
func IDFromPublicKey(der []byte) (ID, error) {
	if len(der) == 0 {
		return "", ErrEmptyKey
	}
	sum, err := mh.Sum(der, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return ID(base58.Encode(sum)), nil
}

// Decode parses a base58 peer-id string, validating it decodes to a
// well-formed multihash.
func Decode(s string) (ID, error) {
	raw := base58.Decode(s)
	if len(raw) == 0 {
		return "", errors.New("peer: invalid base58 peer id")
	}
	if _, err := mh.Cast(raw); err != nil {
		return "", err
	}
	return ID(s), nil
}
