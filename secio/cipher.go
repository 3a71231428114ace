package secio

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blowfish"
)

// cipherSpec describes a negotiable symmetric cipher: its key size and the
// stream it builds in CTR mode, matching the three names Propose.ciphers
// advertises (spec.md §4.4).
type cipherSpec struct {
	keySize int
	ivSize  int
	newCTR  func(key, iv []byte) (cipher.Stream, error)
}

var cipherTable = map[string]cipherSpec{
	"AES-256":  {keySize: 32, ivSize: aes.BlockSize, newCTR: newAESCTR},
	"AES-128":  {keySize: 16, ivSize: aes.BlockSize, newCTR: newAESCTR},
	"Blowfish": {keySize: 32, ivSize: blowfish.BlockSize, newCTR: newBlowfishCTR},
}

func newAESCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

func newBlowfishCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

// hashTable maps Propose.hashes names to the hash.Hash constructor used
// both for the HMAC and for the HKDF-based key stretch.
var hashTable = map[string]func() hash.Hash{
	"SHA256": sha256.New,
	"SHA512": sha512.New,
}

var curveTable = map[string]elliptic.Curve{
	"P-256": elliptic.P256(),
	"P-384": elliptic.P384(),
	"P-521": elliptic.P521(),
}
