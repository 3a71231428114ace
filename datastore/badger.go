package datastore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badgerds "github.com/ipfs/go-ds-badger"
)

// BadgerDatastore adapts github.com/ipfs/go-ds-badger's Batching
// datastore to the ordered-cursor Datastore contract spec.md §3 requires,
// the way node/popn.go wires badgerds.NewDatastore for the blockstore.
//
// Records are stored under a monotonically increasing sequence key so that
// badger's native lexicographic key order doubles as insertion order; a
// side index maps the caller's key to its sequence number for O(1) Get.
type BadgerDatastore struct {
	mu   sync.Mutex
	bds  *badgerds.Datastore
	next uint64
}

type storedRecord struct {
	Key   []byte
	Value []byte
	Time  int64
}

// OpenBadger opens (or creates) a badger-backed Datastore at path.
func OpenBadger(path string) (*BadgerDatastore, error) {
	opts := badgerds.DefaultOptions
	opts.SyncWrites = false
	opts.Truncate = true
	bds, err := badgerds.NewDatastore(path, &opts)
	if err != nil {
		return nil, err
	}
	d := &BadgerDatastore{bds: bds}
	d.next, err = d.scanMaxSeq()
	if err != nil {
		return nil, err
	}
	return d, nil
}

func seqKey(seq uint64) ds.Key {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return ds.NewKey("/seq/" + fmt.Sprintf("%016x", buf))
}

func indexKey(key []byte) ds.Key {
	return ds.NewKey("/bykey/" + string(key))
}

func (d *BadgerDatastore) scanMaxSeq() (uint64, error) {
	results, err := d.bds.Query(query.Query{Prefix: "/seq", KeysOnly: true})
	if err != nil {
		return 0, err
	}
	defer results.Close()
	var max uint64
	for e := range results.Next() {
		if e.Error != nil {
			return 0, e.Error
		}
		max++
	}
	return max, nil
}

// Close releases the underlying badger handles.
func (d *BadgerDatastore) Close() error {
	return d.bds.Close()
}

// Get returns the record for key, or ErrNotFound.
func (d *BadgerDatastore) Get(key []byte) (Record, error) {
	seqBytes, err := d.bds.Get(indexKey(key))
	if err != nil {
		return Record{}, ErrNotFound
	}
	seq := binary.BigEndian.Uint64(seqBytes)
	raw, err := d.bds.Get(seqKey(seq))
	if err != nil {
		return Record{}, ErrNotFound
	}
	var sr storedRecord
	if err := json.Unmarshal(raw, &sr); err != nil {
		return Record{}, err
	}
	return Record{Key: sr.Key, Value: sr.Value, Time: sr.Time}, nil
}

// Put inserts or updates a record, reusing the original sequence slot on
// update so insertion order is preserved.
func (d *BadgerDatastore) Put(r Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ik := indexKey(r.Key)
	var seq uint64
	if existing, err := d.bds.Get(ik); err == nil {
		seq = binary.BigEndian.Uint64(existing)
	} else {
		seq = d.next
		d.next++
		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], seq)
		if err := d.bds.Put(ik, seqBuf[:]); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(storedRecord{Key: r.Key, Value: r.Value, Time: r.Time})
	if err != nil {
		return err
	}
	return d.bds.Put(seqKey(seq), raw)
}

// Cursor returns an ordered cursor over a point-in-time snapshot of every
// stored record, oldest first.
func (d *BadgerDatastore) Cursor() Cursor {
	results, err := d.bds.Query(query.Query{Prefix: "/seq", Orders: []query.Order{query.OrderByKey{}}})
	if err != nil {
		return &memCursor{pos: -1}
	}
	defer results.Close()
	var records []Record
	for e := range results.Next() {
		if e.Error != nil {
			continue
		}
		var sr storedRecord
		if err := json.Unmarshal(e.Value, &sr); err != nil {
			continue
		}
		records = append(records, Record{Key: sr.Key, Value: sr.Value, Time: sr.Time})
	}
	return &memCursor{records: records, pos: -1}
}
