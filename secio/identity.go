// Package secio implements the encrypted, authenticated channel negotiated
// over a raw byte stream before yamux takes over (spec.md §4.4), grounded
// in original_source/libp2p/secio/propose.c and secio/exchange.c.
package secio

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"

	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/pb"
)

// KeyTypeRSA is the only key type this port speaks, matching the teacher
// repo's RSA-only identity and original_source's KEYTYPE_RSA.
const KeyTypeRSA int32 = 0

// ErrUnsupportedKeyType is returned when a remote PublicKey message names a
// key type other than RSA.
var ErrUnsupportedKeyType = errors.New("secio: unsupported public key type")

// Identity is a node's long-term RSA keypair, used to sign the key
// exchange and to derive the node's peer id.
type Identity struct {
	priv   *rsa.PrivateKey
	pubMsg []byte
	id     peer.ID
}

// GenerateIdentity creates a fresh RSA identity of the given modulus size.
func GenerateIdentity(bits int) (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv)
}

// NewIdentity wraps an existing RSA private key as a secio Identity.
func NewIdentity(priv *rsa.PrivateKey) (*Identity, error) {
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	pk := &pb.PublicKey{Type: KeyTypeRSA, Data: der}
	msg := pk.Marshal()
	id, err := peer.IDFromPublicKey(msg)
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, pubMsg: msg, id: id}, nil
}

// ID returns the peer id derived from this identity's public key.
func (id *Identity) ID() peer.ID { return id.id }

// PublicKeyMessage returns the protobuf-encoded PublicKey carried in a
// Propose message and used to derive the peer id on both ends.
func (id *Identity) PublicKeyMessage() []byte { return id.pubMsg }

// PrivateKey returns the identity's RSA private key, for callers (the
// config package's repo init/persistence) that need to serialize it to
// disk. The handshake itself never needs this; only storage does.
func (id *Identity) PrivateKey() *rsa.PrivateKey { return id.priv }

func (id *Identity) sign(msg []byte) ([]byte, error) {
	h := sha256Sum(msg)
	return rsa.SignPKCS1v15(rand.Reader, id.priv, crypto.SHA256, h)
}

// Sign signs msg with the identity's long-term key, exported for callers
// outside the handshake — the DHT PUT_VALUE path signs a record's
// key||value the same way a Propose is signed.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	return id.sign(msg)
}

// parsePublicKey decodes a remote Propose.PublicKey message into an RSA
// public key plus the peer id it implies.
func parsePublicKey(msg []byte) (*rsa.PublicKey, peer.ID, error) {
	pk, err := pb.UnmarshalPublicKey(msg)
	if err != nil {
		return nil, "", err
	}
	if pk.Type != KeyTypeRSA {
		return nil, "", ErrUnsupportedKeyType
	}
	pub, err := x509.ParsePKIXPublicKey(pk.Data)
	if err != nil {
		return nil, "", err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, "", ErrUnsupportedKeyType
	}
	id, err := peer.IDFromPublicKey(msg)
	if err != nil {
		return nil, "", err
	}
	return rsaPub, id, nil
}

func verifySignature(pub *rsa.PublicKey, msg, sig []byte) error {
	h := sha256Sum(msg)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, h, sig)
}

// VerifyRecordSignature checks sig over msg against the RSA public key
// carried in a protobuf-encoded PublicKey message, the same wire shape
// Propose.PublicKey uses — reused by the DHT's PUT_VALUE record-author
// check (spec.md §4.8) so record authentication shares the one RSA/PKCS1v15
// verification path the secio handshake already established.
func VerifyRecordSignature(authorPublicKeyMsg, msg, sig []byte) error {
	pub, _, err := parsePublicKey(authorPublicKeyMsg)
	if err != nil {
		return err
	}
	return verifySignature(pub, msg, sig)
}

// PeerIDFromPublicKeyMessage derives the peer id implied by a
// protobuf-encoded PublicKey message.
func PeerIDFromPublicKeyMessage(msg []byte) (peer.ID, error) {
	_, id, err := parsePublicKey(msg)
	return id, err
}
