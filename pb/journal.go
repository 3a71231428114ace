package pb

// JournalEntry is one timestamped content record exchanged during
// replication (spec.md §4.9).
type JournalEntry struct {
	Timestamp int64
	Hash      []byte
	Pin       bool
}

func encodeEntry(e JournalEntry) []byte {
	w := &Writer{}
	w.WriteInt64Field(1, e.Timestamp)
	w.WriteBytesField(2, e.Hash)
	if e.Pin {
		w.WriteVarintField(3, 1)
	}
	return w.Bytes()
}

func decodeEntry(buf []byte) (JournalEntry, error) {
	var e JournalEntry
	r := NewReader(buf)
	for !r.Done() {
		field, wt, err := r.Tag()
		if err != nil {
			return JournalEntry{}, err
		}
		switch field {
		case 1:
			v, err := r.Varint()
			if err != nil {
				return JournalEntry{}, err
			}
			e.Timestamp = int64(v)
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return JournalEntry{}, err
			}
			e.Hash = append([]byte(nil), b...)
		case 3:
			v, err := r.Varint()
			if err != nil {
				return JournalEntry{}, err
			}
			e.Pin = v != 0
		default:
			if err := r.Skip(wt); err != nil {
				return JournalEntry{}, err
			}
		}
	}
	return e, nil
}

// JournalMessage carries a digest of recent datastore records for
// anti-entropy replication (spec.md §4.9/§6).
type JournalMessage struct {
	StartEpoch   int64
	EndEpoch     int64
	CurrentEpoch int64
	Entries      []JournalEntry
}

// Marshal encodes a JournalMessage, fields 1=start,2=end,3=current,4=entry(repeated).
func (j *JournalMessage) Marshal() []byte {
	w := &Writer{}
	w.WriteInt64Field(1, j.StartEpoch)
	w.WriteInt64Field(2, j.EndEpoch)
	w.WriteInt64Field(3, j.CurrentEpoch)
	for _, e := range j.Entries {
		w.WriteBytesField(4, encodeEntry(e))
	}
	return w.Bytes()
}

// UnmarshalJournalMessage decodes a JournalMessage.
func UnmarshalJournalMessage(buf []byte) (*JournalMessage, error) {
	j := &JournalMessage{}
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
			j.StartEpoch = int64(v)
		case 2:
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			j.EndEpoch = int64(v)
		case 3:
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			j.CurrentEpoch = int64(v)
		case 4:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			e, err := decodeEntry(b)
			if err != nil {
				return nil, err
			}
			j.Entries = append(j.Entries, e)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return j, nil
}
