package journal

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	fetched [][]byte
	err     error
}

func (f *fakeFetcher) FetchBlock(ctx context.Context, hash []byte) error {
	f.fetched = append(f.fetched, hash)
	return f.err
}

func TestBuildDigestReadsLastNRecordsNewestFirst(t *testing.T) {
	ds := datastore.NewMemDatastore()
	for i := 0; i < 15; i++ {
		require.NoError(t, ds.Put(datastore.Record{
			Key: []byte{byte(i)}, Value: []byte{pinnedByte}, Time: int64(i),
		}))
	}
	j := New(peer.ID("self"), ds, nil, nil)

	digest, err := j.buildDigest(1000)
	require.NoError(t, err)
	require.Len(t, digest.Entries, DefaultDigestSize)
	require.Equal(t, int64(1000), digest.CurrentEpoch)
	// Last() starts at the newest record (key 14, time 14).
	require.Equal(t, []byte{14}, digest.Entries[0].Hash)
}

func TestReconcileDropsOnClockSkew(t *testing.T) {
	ds := datastore.NewMemDatastore()
	j := New(peer.ID("self"), ds, nil, nil)

	msg := &pb.JournalMessage{CurrentEpoch: 0}
	err := j.reconcile(context.Background(), msg, int64(MaxClockSkew/time.Second)+1000)
	require.ErrorIs(t, err, ErrClockSkew)
}

func TestReconcileFetchesMissingEntry(t *testing.T) {
	ds := datastore.NewMemDatastore()
	fetcher := &fakeFetcher{}
	j := New(peer.ID("self"), ds, fetcher, nil)

	msg := &pb.JournalMessage{
		CurrentEpoch: 100,
		Entries:      []pb.JournalEntry{{Timestamp: 50, Hash: []byte("missing-hash"), Pin: true}},
	}
	require.NoError(t, j.reconcile(context.Background(), msg, 100))
	require.Len(t, fetcher.fetched, 1)
	require.Equal(t, []byte("missing-hash"), fetcher.fetched[0])

	rec, err := ds.Get([]byte("missing-hash"))
	require.NoError(t, err)
	require.Equal(t, int64(50), rec.Time)
	require.Equal(t, []byte{pinnedByte}, rec.Value)
}

func TestReconcileAdoptsEarlierRemoteTimestamp(t *testing.T) {
	ds := datastore.NewMemDatastore()
	require.NoError(t, ds.Put(datastore.Record{Key: []byte("k"), Value: []byte{unpinnedByte}, Time: 200}))
	j := New(peer.ID("self"), ds, nil, nil)

	msg := &pb.JournalMessage{
		CurrentEpoch: 100,
		Entries:      []pb.JournalEntry{{Timestamp: 100, Hash: []byte("k")}},
	}
	require.NoError(t, j.reconcile(context.Background(), msg, 100))

	rec, err := ds.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, int64(100), rec.Time)
}

func TestReconcileKeepsEarlierLocalTimestamp(t *testing.T) {
	ds := datastore.NewMemDatastore()
	require.NoError(t, ds.Put(datastore.Record{Key: []byte("k"), Value: []byte{unpinnedByte}, Time: 50}))
	j := New(peer.ID("self"), ds, nil, nil)

	msg := &pb.JournalMessage{
		CurrentEpoch: 100,
		Entries:      []pb.JournalEntry{{Timestamp: 60, Hash: []byte("k")}},
	}
	require.NoError(t, j.reconcile(context.Background(), msg, 100))

	rec, err := ds.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, int64(50), rec.Time)
}

// pipeStream adapts one end of a net.Pipe to protocol.Stream.
type pipeStream struct{ net.Conn }

type pipeOpener struct{ remote *Journal }

func (o *pipeOpener) OpenStream(ctx context.Context, id peer.ID, protocolID string) (protocol.Stream, error) {
	client, server := net.Pipe()
	go func() {
		raw, err := pb.ReadDelimited(server)
		if err != nil {
			server.Close()
			return
		}
		o.remote.Handle(raw, pipeStream{server})
		server.Close()
	}()
	return pipeStream{client}, nil
}

func TestRunReplicationRoundTrip(t *testing.T) {
	remoteDS := datastore.NewMemDatastore()
	require.NoError(t, remoteDS.Put(datastore.Record{Key: []byte("remote-only"), Value: []byte{pinnedByte}, Time: 10}))
	remote := New(peer.ID("remote"), remoteDS, nil, nil)

	localDS := datastore.NewMemDatastore()
	fetcher := &fakeFetcher{}
	local := New(peer.ID("local"), localDS, fetcher, &pipeOpener{remote: remote})

	require.NoError(t, local.RunReplication(context.Background(), peer.ID("remote")))
	require.Len(t, fetcher.fetched, 1)
	require.Equal(t, []byte("remote-only"), fetcher.fetched[0])
}

func TestApproveRevoke(t *testing.T) {
	j := New(peer.ID("self"), datastore.NewMemDatastore(), nil, nil)
	a, b := peer.ID("a"), peer.ID("b")
	j.Approve(a)
	j.Approve(b)
	require.ElementsMatch(t, []peer.ID{a, b}, j.approved())

	j.Revoke(a)
	require.Equal(t, []peer.ID{b}, j.approved())
}
