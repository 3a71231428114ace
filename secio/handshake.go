package secio

import (
	"bytes"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"hash"
	"io"
	"net"

	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/pb"
)

const (
	maxProposeSize  = 1 << 20
	maxExchangeSize = 1 << 16
)

// ErrInvalidEphemeralKey is returned when a remote's ephemeral public key
// doesn't decode on the negotiated curve.
var ErrInvalidEphemeralKey = errors.New("secio: invalid ephemeral public key")

// ErrNonceMismatch is returned when the post-handshake nonce confirmation
// doesn't echo back the locally generated rand, fatal per spec.md §4.4.
var ErrNonceMismatch = errors.New("secio: nonce confirmation mismatch")

type stretchedKeys struct {
	iv        []byte
	cipherKey []byte
	macKey    []byte
}

// Handshake runs the two-phase secio negotiation over conn (already raw
// TCP or the multistream-selected byte stream) and returns an encrypted,
// authenticated Conn plus the remote's peer id.
func Handshake(conn net.Conn, id *Identity) (*Conn, peer.ID, error) {
	localRand := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, localRand); err != nil {
		return nil, "", err
	}
	localPropose := &pb.Propose{
		Rand:      localRand,
		PublicKey: id.PublicKeyMessage(),
		Exchanges: preferredExchanges,
		Ciphers:   preferredCiphers,
		Hashes:    preferredHashes,
	}
	localProposeBytes := localPropose.Marshal()
	if err := writeFrame(conn, localProposeBytes); err != nil {
		return nil, "", err
	}

	remoteProposeBytes, err := readFrame(conn, maxProposeSize)
	if err != nil {
		return nil, "", err
	}
	remotePropose, err := pb.UnmarshalPropose(remoteProposeBytes)
	if err != nil {
		return nil, "", err
	}
	remotePub, remoteID, err := parsePublicKey(remotePropose.PublicKey)
	if err != nil {
		return nil, "", err
	}

	localIsChooser, err := decideOrder(localPropose.PublicKey, remotePropose.PublicKey, localRand, remotePropose.Rand)
	if err != nil {
		return nil, "", err
	}
	chosen, err := negotiate(localIsChooser, localPropose, remotePropose)
	if err != nil {
		return nil, "", err
	}
	curve := curveTable[chosen.curve]
	cs := cipherTable[chosen.cipher]
	newHash := hashTable[chosen.hash]

	localEphPriv, localEphX, localEphY, err := elliptic.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, "", err
	}
	localEphPub := elliptic.Marshal(curve, localEphX, localEphY)

	sigInput := concat(localProposeBytes, remoteProposeBytes, localEphPub)
	sig, err := id.sign(sigInput)
	if err != nil {
		return nil, "", err
	}
	localExchange := &pb.Exchange{EphemeralPublicKey: localEphPub, Signature: sig}
	if err := writeFrame(conn, localExchange.Marshal()); err != nil {
		return nil, "", err
	}

	remoteExchangeBytes, err := readFrame(conn, maxExchangeSize)
	if err != nil {
		return nil, "", err
	}
	remoteExchange, err := pb.UnmarshalExchange(remoteExchangeBytes)
	if err != nil {
		return nil, "", err
	}

	verifyInput := concat(remoteProposeBytes, localProposeBytes, remoteExchange.EphemeralPublicKey)
	if err := verifySignature(remotePub, verifyInput, remoteExchange.Signature); err != nil {
		return nil, "", err
	}

	remoteX, remoteY := elliptic.Unmarshal(curve, remoteExchange.EphemeralPublicKey)
	if remoteX == nil {
		return nil, "", ErrInvalidEphemeralKey
	}
	sharedX, _ := curve.ScalarMult(remoteX, remoteY, localEphPriv)
	secret := sharedX.Bytes()

	macKeySize := newHash().Size()
	half := cs.ivSize + cs.keySize + macKeySize
	material, err := stretchKeys(newHash, secret, 2*half)
	if err != nil {
		return nil, "", err
	}
	key1 := parseStretched(material[:half], cs, macKeySize)
	key2 := parseStretched(material[half:], cs, macKeySize)

	var writeKeys, readKeys stretchedKeys
	if localIsChooser {
		writeKeys, readKeys = key1, key2
	} else {
		writeKeys, readKeys = key2, key1
	}

	writeStream, err := cs.newCTR(writeKeys.cipherKey, writeKeys.iv)
	if err != nil {
		return nil, "", err
	}
	readStream, err := cs.newCTR(readKeys.cipherKey, readKeys.iv)
	if err != nil {
		return nil, "", err
	}

	c := newConn(conn, writeStream, readStream, writeKeys.macKey, readKeys.macKey, newHash)
	c.remote = remoteID.String()

	if _, err := c.Write(remotePropose.Rand); err != nil {
		return nil, "", err
	}
	gotNonce := make([]byte, len(localRand))
	if _, err := io.ReadFull(c, gotNonce); err != nil {
		return nil, "", err
	}
	if !bytes.Equal(gotNonce, localRand) {
		return nil, "", ErrNonceMismatch
	}

	return c, remoteID, nil
}

func stretchKeys(newHash func() hash.Hash, secret []byte, length int) ([]byte, error) {
	kdf := hkdfReader(newHash, secret, length)
	out := make([]byte, length)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseStretched(buf []byte, cs cipherSpec, macKeySize int) stretchedKeys {
	iv := buf[:cs.ivSize]
	cipherKey := buf[cs.ivSize : cs.ivSize+cs.keySize]
	macKey := buf[cs.ivSize+cs.keySize : cs.ivSize+cs.keySize+macKeySize]
	return stretchedKeys{iv: iv, cipherKey: cipherKey, macKey: macKey}
}

func concat(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

