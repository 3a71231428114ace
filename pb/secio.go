package pb

// Propose is the first secio handshake message: each side advertises its
// long-term public key, a random nonce, and ordered preference lists for
// the key exchange curve, cipher and hash (spec.md §4.4).
type Propose struct {
	Rand      []byte
	PublicKey []byte
	Exchanges string
	Ciphers   string
	Hashes    string
}

// Marshal encodes a Propose message, fields 1..5 in order.
func (p *Propose) Marshal() []byte {
	w := &Writer{}
	w.WriteBytesField(1, p.Rand)
	w.WriteBytesField(2, p.PublicKey)
	w.WriteStringField(3, p.Exchanges)
	w.WriteStringField(4, p.Ciphers)
	w.WriteStringField(5, p.Hashes)
	return w.Bytes()
}

// UnmarshalPropose decodes a Propose message.
func UnmarshalPropose(buf []byte) (*Propose, error) {
	p := &Propose{}
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
			p.Rand = append([]byte(nil), b...)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p.PublicKey = append([]byte(nil), b...)
		case 3:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p.Exchanges = string(b)
		case 4:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p.Ciphers = string(b)
		case 5:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p.Hashes = string(b)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Exchange is the second secio handshake message: an ephemeral public key
// and a signature over both Propose messages plus the ephemeral key.
type Exchange struct {
	EphemeralPublicKey []byte
	Signature          []byte
}

// Marshal encodes an Exchange message.
func (e *Exchange) Marshal() []byte {
	w := &Writer{}
	w.WriteBytesField(1, e.EphemeralPublicKey)
	w.WriteBytesField(2, e.Signature)
	return w.Bytes()
}

// UnmarshalExchange decodes an Exchange message.
func UnmarshalExchange(buf []byte) (*Exchange, error) {
	e := &Exchange{}
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
			e.EphemeralPublicKey = append([]byte(nil), b...)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			e.Signature = append([]byte(nil), b...)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// PublicKey is the wire shape of a libp2p-style public key: a type tag
// plus DER-encoded (or raw) key bytes.
type PublicKey struct {
	Type int32
	Data []byte
}

// Marshal encodes a PublicKey.
func (k *PublicKey) Marshal() []byte {
	w := &Writer{}
	w.WriteVarintField(1, uint64(k.Type))
	w.WriteBytesField(2, k.Data)
	return w.Bytes()
}

// UnmarshalPublicKey decodes a PublicKey.
func UnmarshalPublicKey(buf []byte) (*PublicKey, error) {
	k := &PublicKey{}
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
			k.Type = int32(v)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			k.Data = append([]byte(nil), b...)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return k, nil
}
