package block

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// ErrNotFound is returned when a block is missing from a Blockstore.
var ErrNotFound = cidNotFoundError{}

type cidNotFoundError struct{}

func (cidNotFoundError) Error() string { return "block: not found" }

// MemStore is a thread-safe in-memory Blockstore, used by tests and by the
// offline routing facade when no on-disk blockstore is configured.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[string]Block
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[string]Block)}
}

// Get returns the block for c, or ErrNotFound.
func (m *MemStore) Get(c cid.Cid) (Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[c.KeyString()]
	if !ok {
		return Block{}, ErrNotFound
	}
	return b, nil
}

// Put stores b, returning the number of data bytes written.
func (m *MemStore) Put(b Block) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.Cid().KeyString()] = b
	return len(b.RawData()), nil
}

// Has reports whether c is stored locally.
func (m *MemStore) Has(c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}
