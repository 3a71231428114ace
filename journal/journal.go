// Package journal implements the anti-entropy replication protocol of
// spec.md §4.9: a periodic digest exchange between approved peers that
// reconciles each side's view of which content hashes it has seen and
// when, grounded in original_source/libipfs/journal/journal.c and the
// teacher's own periodic-dispatch/backoff shape in exchange/replication.go.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/rs/zerolog/log"
)

// ID is the protocol this package's Handler registers under.
const ID = "/ipfs/journalio/1.0.0"

// DefaultDigestSize is "the last N (default 10)" records a replication
// round carries (spec.md §4.9).
const DefaultDigestSize = 10

// MaxClockSkew is the bound beyond which an inbound digest's current-epoch
// is dropped outright (spec.md §4.9 "if |now - current-epoch| > 300s, drop").
const MaxClockSkew = 300 * time.Second

// ErrClockSkew is returned when an inbound JournalMessage's current-epoch
// is outside MaxClockSkew. Handle only logs it; RunReplication returns it
// to its caller.
var ErrClockSkew = errors.New("journal: remote clock skew exceeds tolerance")

// pinnedByte/unpinnedByte encode JournalEntry.Pin into the single-byte
// datastore.Record.Value this package stores alongside each content hash's
// timestamp — the datastore interface only carries opaque values, so the
// pin flag has to live inside one.
const (
	unpinnedByte = byte(0)
	pinnedByte   = byte(1)
)

// BlockFetcher requests a block by content hash through the exchange
// layer, fulfilling spec.md §4.9's "request the block through the
// exchange component (GetBlockAsync, out of core)" — deliberately the
// narrowest interface journal needs, so the exchange/bitswap machinery
// itself stays out of this package's scope (spec.md §1 Non-goals).
type BlockFetcher interface {
	FetchBlock(ctx context.Context, hash []byte) error
}

// ChannelOpener opens an application-protocol channel to a peer, the same
// narrow dial interface routing.ChannelOpener models for C11 — duplicated
// here rather than imported so the journal and routing packages don't
// depend on one another, only on *swarm.Swarm satisfying both.
type ChannelOpener interface {
	OpenStream(ctx context.Context, id peer.ID, protocolID string) (protocol.Stream, error)
}

// Journal runs the periodic outbound digest exchange and answers inbound
// ones, reconciling its datastore's (hash -> timestamp, pin) records
// against every approved replication peer's view of the same content.
type Journal struct {
	self      peer.ID
	datastore datastore.Datastore
	fetcher   BlockFetcher
	opener    ChannelOpener

	mu    sync.Mutex
	peers map[peer.ID]struct{}
}

// New builds a Journal. fetcher may be nil if this node never needs to
// catch up on missing content (it will simply log and skip ENTRY_NEEDED
// processing).
func New(self peer.ID, ds datastore.Datastore, fetcher BlockFetcher, opener ChannelOpener) *Journal {
	return &Journal{
		self:      self,
		datastore: ds,
		fetcher:   fetcher,
		opener:    opener,
		peers:     make(map[peer.ID]struct{}),
	}
}

// Approve adds id to the set of replication peers RunReplication and the
// periodic dispatcher serve.
func (j *Journal) Approve(id peer.ID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.peers[id] = struct{}{}
}

// Revoke removes id from the replication set.
func (j *Journal) Revoke(id peer.ID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.peers, id)
}

// approved returns a snapshot of the current replication peer set.
func (j *Journal) approved() []peer.ID {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]peer.ID, 0, len(j.peers))
	for id := range j.peers {
		out = append(out, id)
	}
	return out
}

// buildDigest reads the last DefaultDigestSize datastore records via the
// ordered cursor, previous from last (spec.md §4.9).
func (j *Journal) buildDigest(now int64) (*pb.JournalMessage, error) {
	cur := j.datastore.Cursor()
	rec, err := cur.Last()
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return &pb.JournalMessage{StartEpoch: now, EndEpoch: now, CurrentEpoch: now}, nil
		}
		return nil, err
	}

	var entries []pb.JournalEntry
	start := rec.Time
	end := rec.Time
	for i := 0; i < DefaultDigestSize; i++ {
		entries = append(entries, toEntry(rec))
		if rec.Time < start {
			start = rec.Time
		}
		if rec.Time > end {
			end = rec.Time
		}
		rec, err = cur.Previous()
		if err != nil {
			break
		}
	}

	return &pb.JournalMessage{
		StartEpoch:   start,
		EndEpoch:     end,
		CurrentEpoch: now,
		Entries:      entries,
	}, nil
}

func toEntry(rec datastore.Record) pb.JournalEntry {
	pin := len(rec.Value) > 0 && rec.Value[0] == pinnedByte
	return pb.JournalEntry{Timestamp: rec.Time, Hash: rec.Key, Pin: pin}
}

// reconcile implements the three-step inbound algorithm of spec.md §4.9:
// drop on clock skew, then for each entry either enqueue ENTRY_NEEDED
// (absent locally), TIME_ADJUST (present with a later local timestamp), or
// leave local state untouched (local timestamp already earlier or equal).
func (j *Journal) reconcile(ctx context.Context, msg *pb.JournalMessage, now int64) error {
	if abs(now-msg.CurrentEpoch) > int64(MaxClockSkew/time.Second) {
		return ErrClockSkew
	}

	for _, entry := range msg.Entries {
		local, err := j.datastore.Get(entry.Hash)
		switch {
		case errors.Is(err, datastore.ErrNotFound):
			j.entryNeeded(ctx, entry)
		case err != nil:
			log.Debug().Err(err).Msg("journal: datastore lookup failed during reconcile")
		case local.Time > entry.Timestamp:
			j.timeAdjust(local, entry)
		default:
			// Local timestamp already at or before the remote's; nothing to do.
		}
	}
	return nil
}

// entryNeeded fetches a hash this node has never recorded, then adopts the
// remote's timestamp on success (spec.md §4.9 step 3).
func (j *Journal) entryNeeded(ctx context.Context, entry pb.JournalEntry) {
	if j.fetcher == nil {
		log.Debug().Str("hash", string(entry.Hash)).Msg("journal: entry needed but no fetcher configured")
		return
	}
	if err := j.fetcher.FetchBlock(ctx, entry.Hash); err != nil {
		log.Debug().Err(err).Str("hash", string(entry.Hash)).Msg("journal: fetch failed")
		return
	}
	pinByte := unpinnedByte
	if entry.Pin {
		pinByte = pinnedByte
	}
	if err := j.datastore.Put(datastore.Record{Key: entry.Hash, Value: []byte{pinByte}, Time: entry.Timestamp}); err != nil {
		log.Debug().Err(err).Str("hash", string(entry.Hash)).Msg("journal: record write after fetch failed")
	}
}

// timeAdjust rewrites the local record to the remote's earlier timestamp,
// keeping the pin byte already on file (spec.md §4.9 "adopt earlier timestamp").
func (j *Journal) timeAdjust(local datastore.Record, entry pb.JournalEntry) {
	if err := j.datastore.Put(datastore.Record{Key: entry.Hash, Value: local.Value, Time: entry.Timestamp}); err != nil {
		log.Debug().Err(err).Str("hash", string(entry.Hash)).Msg("journal: time adjust write failed")
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
