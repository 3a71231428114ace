package secio

import (
	"crypto/cipher"
	"crypto/hmac"
	"errors"
	"hash"
	"net"
	"sync"
)

// maxPayloadSize bounds a single post-handshake frame's plaintext length.
const maxPayloadSize = 1 << 20

// ErrMACMismatch is returned when an inbound frame's MAC doesn't verify,
// fatal per spec.md §4.4 ("mismatch = fatal").
var ErrMACMismatch = errors.New("secio: mac verification failed")

// Conn wraps a raw net.Conn with the secio post-handshake transport: every
// frame is cipher(payload) || mac(cipher(payload)) behind a 4-byte
// big-endian length prefix (spec.md §6).
type Conn struct {
	net.Conn

	writeMu     sync.Mutex
	writeStream cipher.Stream
	writeMACKey []byte

	readStream cipher.Stream
	readMACKey []byte
	readBuf    []byte

	newHash func() hash.Hash
	macSize int

	remote string
}

func newConn(raw net.Conn, writeStream, readStream cipher.Stream, writeMACKey, readMACKey []byte, newHash func() hash.Hash) *Conn {
	return &Conn{
		Conn:        raw,
		writeStream: writeStream,
		writeMACKey: writeMACKey,
		readStream:  readStream,
		readMACKey:  readMACKey,
		newHash:     newHash,
		macSize:     newHash().Size(),
	}
}

// Write encrypts and authenticates p as a single framed message.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ciphertext := make([]byte, len(p))
	c.writeStream.XORKeyStream(ciphertext, p)

	mac := hmac.New(c.newHash, c.writeMACKey)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	frame := append(ciphertext, tag...)
	if err := writeFrame(c.Conn, frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read returns decrypted plaintext, buffering across frame boundaries so a
// caller may read less than one full frame at a time.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.readBuf) == 0 {
		if err := c.readNextFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *Conn) readNextFrame() error {
	frame, err := readFrame(c.Conn, maxPayloadSize+c.macSize)
	if err != nil {
		return err
	}
	if len(frame) < c.macSize {
		return ErrMACMismatch
	}
	split := len(frame) - c.macSize
	ciphertext, tag := frame[:split], frame[split:]

	mac := hmac.New(c.newHash, c.readMACKey)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, tag) {
		return ErrMACMismatch
	}

	plaintext := make([]byte, len(ciphertext))
	c.readStream.XORKeyStream(plaintext, ciphertext)
	c.readBuf = plaintext
	return nil
}
