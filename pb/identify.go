package pb

// IdentifyMessage answers the "/ipfs/id/1.0.0" protocol: a peer's own
// public key, listen addresses, supported protocols, and (on the reply
// side) the address it observed the dialer connecting from — the same
// fields real libp2p identify exchanges, scoped down to what this node's
// swarm needs to enrich its peerstore on connect.
type IdentifyMessage struct {
	PublicKey    []byte
	ListenAddrs  [][]byte
	Protocols    []string
	ObservedAddr []byte
}

// Marshal encodes an IdentifyMessage: 1=public-key, 2=listen-addr
// (repeated), 3=protocol (repeated), 4=observed-addr.
func (m *IdentifyMessage) Marshal() []byte {
	w := &Writer{}
	w.WriteBytesField(1, m.PublicKey)
	for _, a := range m.ListenAddrs {
		w.WriteBytesField(2, a)
	}
	for _, p := range m.Protocols {
		w.WriteStringField(3, p)
	}
	w.WriteBytesField(4, m.ObservedAddr)
	return w.Bytes()
}

// UnmarshalIdentifyMessage decodes an IdentifyMessage, skipping unrecognized fields.
func UnmarshalIdentifyMessage(buf []byte) (*IdentifyMessage, error) {
	m := &IdentifyMessage{}
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
			m.PublicKey = append([]byte(nil), b...)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			m.ListenAddrs = append(m.ListenAddrs, append([]byte(nil), b...))
		case 3:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			m.Protocols = append(m.Protocols, string(b))
		case 4:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			m.ObservedAddr = append([]byte(nil), b...)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
