package peer

import "sync"

// ProviderRecord is one peer's claim to provide a piece of content, with
// the time the claim was recorded (spec.md §3 "Providerstore").
type ProviderRecord struct {
	Peer      ID
	Timestamp int64
}

// Providerstore maps a content-key (raw hash bytes, as a string) to the
// set of peers claiming to provide it. Eviction is explicitly out of
// scope (spec.md §3).
type Providerstore struct {
	mu    sync.RWMutex
	byKey map[string][]ProviderRecord
}

// NewProviderstore creates an empty Providerstore.
func NewProviderstore() *Providerstore {
	return &Providerstore{byKey: make(map[string][]ProviderRecord)}
}

// Add records that p claims to provide key at time ts (seconds since
// epoch), replacing any earlier claim by the same peer for the same key.
func (ps *Providerstore) Add(key []byte, p ID, ts int64) {
	k := string(key)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	recs := ps.byKey[k]
	for i, r := range recs {
		if r.Peer == p {
			recs[i].Timestamp = ts
			return
		}
	}
	ps.byKey[k] = append(recs, ProviderRecord{Peer: p, Timestamp: ts})
}

// Get returns the providers known for key, insertion order preserved.
func (ps *Providerstore) Get(key []byte) []ProviderRecord {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	recs := ps.byKey[string(key)]
	out := make([]ProviderRecord, len(recs))
	copy(out, recs)
	return out
}

// Has reports whether any peer claims to provide key.
func (ps *Providerstore) Has(key []byte) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.byKey[string(key)]) > 0
}
