package secio

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/barrystyle/libipfs-go/pb"
)

// Preference lists every Propose advertises, in the exact order given by
// spec.md §4.4.
const (
	preferredExchanges = "P-256,P-384,P-521"
	preferredCiphers   = "AES-256,AES-128,Blowfish"
	preferredHashes    = "SHA256,SHA512"
)

// ErrIdentical is returned when both sides proposed an identical public
// key and rand, making the chooser comparison a tie — a loopback connection.
var ErrIdentical = errors.New("secio: identical propose messages (loopback)")

// ErrNoCommonAlgorithm is returned when two preference lists share no entry.
var ErrNoCommonAlgorithm = errors.New("secio: no common algorithm")

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// decideOrder computes which side's preference lists win the negotiation,
// per spec.md §4.4: "compute order = SHA256(remote.pub || local.rand) vs
// SHA256(local.pub || remote.rand); the side whose hash compares greater
// dictates choice." Both peers derive the same winner independently.
func decideOrder(localPub, remotePub, localRand, remoteRand []byte) (localIsChooser bool, err error) {
	h1 := sha256Sum(append(append([]byte{}, remotePub...), localRand...))
	h2 := sha256Sum(append(append([]byte{}, localPub...), remoteRand...))
	cmp := bytes.Compare(h1, h2)
	if cmp == 0 {
		return false, ErrIdentical
	}
	return cmp > 0, nil
}

// selectFirst returns the first entry of chooser that also appears in other.
func selectFirst(chooser, other string) (string, error) {
	otherSet := make(map[string]bool)
	for _, o := range strings.Split(other, ",") {
		otherSet[o] = true
	}
	for _, c := range strings.Split(chooser, ",") {
		if otherSet[c] {
			return c, nil
		}
	}
	return "", ErrNoCommonAlgorithm
}

// negotiated holds the outcome of curve/cipher/hash selection.
type negotiated struct {
	curve  string
	cipher string
	hash   string
}

func negotiate(localIsChooser bool, local, remote *pb.Propose) (negotiated, error) {
	chooserExchanges, otherExchanges := local.Exchanges, remote.Exchanges
	chooserCiphers, otherCiphers := local.Ciphers, remote.Ciphers
	chooserHashes, otherHashes := local.Hashes, remote.Hashes
	if !localIsChooser {
		chooserExchanges, otherExchanges = remote.Exchanges, local.Exchanges
		chooserCiphers, otherCiphers = remote.Ciphers, local.Ciphers
		chooserHashes, otherHashes = remote.Hashes, local.Hashes
	}
	curve, err := selectFirst(chooserExchanges, otherExchanges)
	if err != nil {
		return negotiated{}, err
	}
	cipherName, err := selectFirst(chooserCiphers, otherCiphers)
	if err != nil {
		return negotiated{}, err
	}
	hashName, err := selectFirst(chooserHashes, otherHashes)
	if err != nil {
		return negotiated{}, err
	}
	return negotiated{curve: curve, cipher: cipherName, hash: hashName}, nil
}
