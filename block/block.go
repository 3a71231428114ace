// Package block defines the content-addressed Block payload of spec.md §3.
package block

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Block is an immutable content-addressed payload: a CID (version + codec
// + multihash) plus its data.
type Block struct {
	cid  cid.Cid
	data []byte
}

// New builds a Block, hashing data with sha2-256 and wrapping it in a CIDv1
// under the given codec. It enforces the invariant
// cid.multihash == hash(cid.codec, data).
func New(codec uint64, data []byte) (Block, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return Block{}, err
	}
	c := cid.NewCidV1(codec, sum)
	return Block{cid: c, data: data}, nil
}

// FromCID wraps already-hashed data under an explicit CID, verifying the
// invariant instead of recomputing it from scratch.
func FromCID(c cid.Cid, data []byte) (Block, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return Block{}, err
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return Block{}, err
	}
	gotSum, err := mh.Decode(sum)
	if err != nil {
		return Block{}, err
	}
	if string(decoded.Digest) != string(gotSum.Digest) {
		return Block{}, fmt.Errorf("block: cid multihash does not match hash(data)")
	}
	return Block{cid: c, data: data}, nil
}

// Cid returns the block's content identifier.
func (b Block) Cid() cid.Cid { return b.cid }

// RawData returns the block's payload bytes.
func (b Block) RawData() []byte { return b.data }

// Blockstore is the external collaborator interface the core consumes
// (spec.md §6): get/put/has on content-addressed blocks.
type Blockstore interface {
	Get(c cid.Cid) (Block, error)
	Put(b Block) (int, error)
	Has(c cid.Cid) (bool, error)
}
