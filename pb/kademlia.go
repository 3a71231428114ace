package pb

// MessageType enumerates the Kademlia message variants in spec.md §4.8.
type MessageType int32

const (
	PutValue MessageType = iota
	GetValue
	AddProvider
	GetProviders
	FindNode
	Ping
)

// Connection describes roughly how reachable a peer is, carried on Peer
// entries the way the original DHT messages do.
type Connection int32

const (
	NotConnected Connection = iota
	Connected
	CanConnect
	CannotConnect
)

// Peer is the wire shape of a closer-peer/provider-peer entry.
type Peer struct {
	ID         []byte
	Addrs      [][]byte
	Connection Connection
}

// Record is a signed (key, value, author) tuple stored in the DHT datastore.
type Record struct {
	Key       []byte
	Value     []byte
	Author    []byte
	Signature []byte
	Time      int64
}

// Marshal encodes a Record standalone, for storage under its own key in a
// datastore outside of a containing Kademlia Message.
func (r *Record) Marshal() []byte { return encodeRecord(r) }

// UnmarshalRecord decodes a standalone Record.
func UnmarshalRecord(buf []byte) (*Record, error) { return decodeRecord(buf) }

// Message is the tagged Kademlia protocol message (spec.md §3/§6).
type Message struct {
	Type          MessageType
	ClusterLevel  int32
	Key           []byte
	Record        *Record
	CloserPeers   []Peer
	ProviderPeers []Peer
}

func encodePeer(w *Writer, field int, p Peer) {
	pw := &Writer{}
	pw.WriteBytesField(1, p.ID)
	for _, a := range p.Addrs {
		pw.WriteBytesField(2, a)
	}
	pw.WriteVarintField(3, uint64(p.Connection))
	w.WriteBytesField(field, pw.Bytes())
}

func decodePeer(buf []byte) (Peer, error) {
	var p Peer
	r := NewReader(buf)
	for !r.Done() {
		field, wt, err := r.Tag()
		if err != nil {
			return Peer{}, err
		}
		switch field {
		case 1:
			b, err := r.Bytes()
			if err != nil {
				return Peer{}, err
			}
			p.ID = append([]byte(nil), b...)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return Peer{}, err
			}
			p.Addrs = append(p.Addrs, append([]byte(nil), b...))
		case 3:
			v, err := r.Varint()
			if err != nil {
				return Peer{}, err
			}
			p.Connection = Connection(v)
		default:
			if err := r.Skip(wt); err != nil {
				return Peer{}, err
			}
		}
	}
	return p, nil
}

func encodeRecord(rec *Record) []byte {
	w := &Writer{}
	w.WriteBytesField(1, rec.Key)
	w.WriteBytesField(2, rec.Value)
	w.WriteBytesField(3, rec.Author)
	w.WriteBytesField(4, rec.Signature)
	w.WriteInt64Field(5, rec.Time)
	return w.Bytes()
}

func decodeRecord(buf []byte) (*Record, error) {
	rec := &Record{}
	r := NewReader(buf)
	for !r.Done() {
		field, wt, err := r.Tag()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rec.Key = append([]byte(nil), b...)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rec.Value = append([]byte(nil), b...)
		case 3:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rec.Author = append([]byte(nil), b...)
		case 4:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rec.Signature = append([]byte(nil), b...)
		case 5:
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			rec.Time = int64(v)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

// Marshal encodes a Message per the field tags in spec.md §6:
// 1=type, 2=key, 3=record, 4=closer-peers (repeated), 5=provider-peers
// (repeated), 10=cluster-level.
func (m *Message) Marshal() []byte {
	w := &Writer{}
	w.WriteVarintField(1, uint64(m.Type))
	w.WriteBytesField(2, m.Key)
	if m.Record != nil {
		w.WriteBytesField(3, encodeRecord(m.Record))
	}
	for _, p := range m.CloserPeers {
		encodePeer(w, 4, p)
	}
	for _, p := range m.ProviderPeers {
		encodePeer(w, 5, p)
	}
	w.WriteVarintField(10, uint64(m.ClusterLevel))
	return w.Bytes()
}

// UnmarshalMessage decodes a Kademlia Message, skipping unrecognized fields.
func UnmarshalMessage(buf []byte) (*Message, error) {
	m := &Message{}
	r := NewReader(buf)
	for !r.Done() {
		field, wt, err := r.Tag()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			m.Type = MessageType(v)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			m.Key = append([]byte(nil), b...)
		case 3:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rec, err := decodeRecord(b)
			if err != nil {
				return nil, err
			}
			m.Record = rec
		case 4:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p, err := decodePeer(b)
			if err != nil {
				return nil, err
			}
			m.CloserPeers = append(m.CloserPeers, p)
		case 5:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p, err := decodePeer(b)
			if err != nil {
				return nil, err
			}
			m.ProviderPeers = append(m.ProviderPeers, p)
		case 10:
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			m.ClusterLevel = int32(v)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
