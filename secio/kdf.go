package secio

import (
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfReader stretches secret into an HMAC-based key-derivation stream
// using the negotiated hash function, per spec.md §4.4's "KDF (HMAC-SHA256
// based stretch)" — generalized to whichever hash the Propose negotiation
// picked rather than pinning SHA256.
func hkdfReader(newHash func() hash.Hash, secret []byte, length int) io.Reader {
	return hkdf.New(newHash, secret, nil, []byte("key expansion"))
}
