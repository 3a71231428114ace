package peer

import (
	"testing"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/stretchr/testify/require"
)

func TestIDFromPublicKey(t *testing.T) {
	id, err := IDFromPublicKey([]byte("a fake DER public key"))
	require.NoError(t, err)
	require.NotEmpty(t, id.String())

	again, err := Decode(id.String())
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestPeerstoreGetOrAddMergesAddrs(t *testing.T) {
	ps := NewPeerstore()
	a1, _ := addr.Parse("/ip4/127.0.0.1/tcp/4101")
	a2, _ := addr.Parse("/ip4/10.0.0.1/tcp/4101")

	p1 := ps.GetOrAdd("QmA", a1)
	p2 := ps.GetOrAdd("QmA", a2)
	require.Same(t, p1, p2)
	require.Len(t, p1.Addrs(), 2)

	require.Len(t, ps.Peers(), 1)
}

func TestPeerstoreInsertionOrder(t *testing.T) {
	ps := NewPeerstore()
	ps.GetOrAdd("QmB")
	ps.GetOrAdd("QmA")
	ps.GetOrAdd("QmC")
	ids := ps.Peers()
	require.Equal(t, ID("QmB"), ids[0].ID())
	require.Equal(t, ID("QmA"), ids[1].ID())
	require.Equal(t, ID("QmC"), ids[2].ID())
}

func TestProviderstore(t *testing.T) {
	ps := NewProviderstore()
	key := []byte("content-hash")
	require.False(t, ps.Has(key))
	ps.Add(key, "QmProvider", 100)
	require.True(t, ps.Has(key))
	recs := ps.Get(key)
	require.Len(t, recs, 1)
	require.Equal(t, ID("QmProvider"), recs[0].Peer)

	ps.Add(key, "QmProvider", 200)
	recs = ps.Get(key)
	require.Len(t, recs, 1)
	require.Equal(t, int64(200), recs[0].Timestamp)
}
