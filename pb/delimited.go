package pb

import (
	"io"

	"github.com/gogo/protobuf/proto"
)

// WriteDelimited writes msg prefixed by its length as a varint, the
// wire framing spec.md §6 specifies for Kademlia and Journal messages.
func WriteDelimited(w io.Writer, msg []byte) error {
	prefix := proto.EncodeVarint(uint64(len(msg)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// ReadDelimited reads a varint-length-prefixed message from r.
func ReadDelimited(r io.Reader) ([]byte, error) {
	length, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readUvarint reads a varint one byte at a time directly off r, since the
// message length prefix precedes any buffered payload.
func readUvarint(r io.Reader) (uint64, error) {
	var x uint64
	var s uint
	one := make([]byte, 1)
	for i := 0; i < 10; i++ {
		if _, err := io.ReadFull(r, one); err != nil {
			return 0, err
		}
		b := one[0]
		if b < 0x80 {
			if i == 9 && b > 1 {
				return 0, proto.ErrOverflow
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, proto.ErrOverflow
}
