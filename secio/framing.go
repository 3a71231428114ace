package secio

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrFrameTooLarge is returned when a peer advertises a frame length
// exceeding the configured maximum, guarding against a malicious or
// corrupt length prefix forcing an unbounded allocation.
var ErrFrameTooLarge = errors.New("secio: frame exceeds maximum size")

// writeFrame writes a 4-byte big-endian length prefix followed by payload,
// the pre- and post-handshake framing spec.md §6 specifies for secio.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame, rejecting lengths above maxSize.
func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if maxSize > 0 && int(n) > maxSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
