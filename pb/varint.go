// Package pb implements the length-delimited, tag-based wire codec shared
// by the Kademlia, secio, record and journal message types. It is a
// hand-rolled encoder/decoder over the varint helpers in
// github.com/gogo/protobuf/proto, mirroring the field-by-field encode/decode
// loops of the original C implementation (libp2p/secio/propose.c,
// libp2p/routing/dht_protocol.c) rather than a .proto-generated stub.
package pb

import (
	"bytes"
	"errors"
	"io"

	"github.com/gogo/protobuf/proto"
)

// WireType identifies how a field's value is encoded on the wire.
type WireType uint64

const (
	WireVarint WireType = 0
	Wire64bit  WireType = 1
	WireBytes  WireType = 2
	Wire32bit  WireType = 5
)

// ErrUnknownWireType is returned when a field tag carries a wire type this
// codec cannot skip or decode.
var ErrUnknownWireType = errors.New("pb: unknown wire type")

func tag(field int, wt WireType) uint64 {
	return uint64(field)<<3 | uint64(wt)
}

// Writer accumulates an encoded message.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the encoded message.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) varint(v uint64) {
	w.buf.Write(proto.EncodeVarint(v))
}

// Field writes a field's tag (field number and wire type).
func (w *Writer) Field(field int, wt WireType) {
	w.varint(tag(field, wt))
}

func (w *Writer) WriteBytesField(field int, v []byte) {
	if v == nil {
		return
	}
	w.Field(field, WireBytes)
	w.varint(uint64(len(v)))
	w.buf.Write(v)
}

func (w *Writer) WriteStringField(field int, v string) {
	if v == "" {
		return
	}
	w.WriteBytesField(field, []byte(v))
}

func (w *Writer) WriteVarintField(field int, v uint64) {
	if v == 0 {
		return
	}
	w.Field(field, WireVarint)
	w.varint(v)
}

func (w *Writer) WriteInt64Field(field int, v int64) {
	w.WriteVarintField(field, uint64(v))
}

// WriteMessageField encodes a nested message as a length-delimited field.
func (w *Writer) WriteMessageField(field int, msg []byte) {
	if msg == nil {
		return
	}
	w.WriteBytesField(field, msg)
}

// Reader walks an encoded message one field at a time.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential field decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Done reports whether every byte has been consumed.
func (r *Reader) Done() bool { return r.pos >= len(r.buf) }

func (r *Reader) readVarint() (uint64, error) {
	v, n := proto.DecodeVarint(r.buf[r.pos:])
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	r.pos += n
	return v, nil
}

// Tag reads the next field number and wire type.
func (r *Reader) Tag() (field int, wt WireType, err error) {
	v, err := r.readVarint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), WireType(v & 0x7), nil
}

// Bytes reads a length-delimited field's payload.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	if int(n) < 0 || r.pos+int(n) > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// Varint reads a raw varint field's value.
func (r *Reader) Varint() (uint64, error) {
	return r.readVarint()
}

// Fixed64 reads 8 raw bytes.
func (r *Reader) Fixed64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(r.buf[r.pos+i]) << (8 * i)
	}
	r.pos += 8
	return v, nil
}

// Fixed32 reads 4 raw bytes.
func (r *Reader) Fixed32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(r.buf[r.pos+i]) << (8 * i)
	}
	r.pos += 4
	return v, nil
}

// Skip discards a field's value according to its wire type, so unknown
// fields never abort decoding (spec: "unknown fields skipped without error").
func (r *Reader) Skip(wt WireType) error {
	switch wt {
	case WireVarint:
		_, err := r.readVarint()
		return err
	case WireBytes:
		_, err := r.Bytes()
		return err
	case Wire64bit:
		_, err := r.Fixed64()
		return err
	case Wire32bit:
		_, err := r.Fixed32()
		return err
	default:
		return ErrUnknownWireType
	}
}
