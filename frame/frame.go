// Package frame encodes and decodes the 12-byte yamux frame header.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only yamux protocol version this codec understands.
const Version = 0

// Size is the fixed wire size of a yamux frame header.
const Size = 12

// Type identifies what kind of frame this is.
type Type uint8

const (
	Data Type = iota
	WindowUpdate
	Ping
	GoAway
)

func (t Type) String() string {
	switch t {
	case Data:
		return "data"
	case WindowUpdate:
		return "window-update"
	case Ping:
		return "ping"
	case GoAway:
		return "go-away"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Flags is a bitmask carried on every frame.
type Flags uint16

const (
	SYN Flags = 1 << iota
	ACK
	FIN
	RST
)

func (f Flags) String() string {
	s := ""
	if f&SYN != 0 {
		s += "syn,"
	}
	if f&ACK != 0 {
		s += "ack,"
	}
	if f&FIN != 0 {
		s += "fin,"
	}
	if f&RST != 0 {
		s += "rst,"
	}
	if s == "" {
		return "none"
	}
	return s[:len(s)-1]
}

// ErrUnknownVersion is returned when decoding a frame carrying an
// unsupported yamux version byte.
var ErrUnknownVersion = errors.New("yamux: unknown frame version")

// ErrShortFrame is returned when fewer than Size bytes are available to decode.
var ErrShortFrame = errors.New("yamux: short frame")

// Frame is the decoded form of a 12-byte yamux header.
type Frame struct {
	Version  uint8
	Type     Type
	Flags    Flags
	StreamID uint32
	Length   uint32
}

// String returns a readable debug string, used at Debug log sites tracing
// frame traffic the way the C original's libp2p_logger_debug calls did.
func (f Frame) String() string {
	return fmt.Sprintf("yamux frame{type=%s flags=%s stream=%d len=%d}", f.Type, f.Flags, f.StreamID, f.Length)
}

// Encode serializes f as a 12-byte big-endian header.
func Encode(f Frame) []byte {
	buf := make([]byte, Size)
	buf[0] = f.Version
	buf[1] = uint8(f.Type)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Flags))
	binary.BigEndian.PutUint32(buf[4:8], f.StreamID)
	binary.BigEndian.PutUint32(buf[8:12], f.Length)
	return buf
}

// Decode parses a 12-byte big-endian header. It rejects unknown versions.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < Size {
		return Frame{}, ErrShortFrame
	}
	f := Frame{
		Version:  buf[0],
		Type:     Type(buf[1]),
		Flags:    Flags(binary.BigEndian.Uint16(buf[2:4])),
		StreamID: binary.BigEndian.Uint32(buf[4:8]),
		Length:   binary.BigEndian.Uint32(buf[8:12]),
	}
	if f.Version != Version {
		return Frame{}, ErrUnknownVersion
	}
	return f, nil
}
