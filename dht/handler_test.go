package dht

import (
	"bytes"
	"testing"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/stretchr/testify/require"
)

// recordingStream captures whatever a Handler writes back, for assertions.
type recordingStream struct {
	bytes.Buffer
}

func (s *recordingStream) Read(p []byte) (int, error) { return 0, nil }
func (s *recordingStream) Close() error               { return nil }

// decodeReply strips the length-delimited framing Handle writes replies
// with and unmarshals the Kademlia message underneath.
func decodeReply(t *testing.T, buf []byte) *pb.Message {
	t.Helper()
	raw, err := pb.ReadDelimited(bytes.NewReader(buf))
	require.NoError(t, err)
	m, err := pb.UnmarshalMessage(raw)
	require.NoError(t, err)
	return m
}

func newTestHandler(t *testing.T) (*Handler, peer.ID) {
	t.Helper()
	self := peer.ID("local-node")
	h := NewHandler(self, peer.NewPeerstore(), peer.NewProviderstore(), datastore.NewMemDatastore(), block.NewMemStore())
	return h, self
}

func TestPutValueThenGetValueRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	id, err := secio.GenerateIdentity(1024)
	require.NoError(t, err)

	key := []byte("content-key")
	value := []byte("content-value")
	sig, err := id.Sign(append(append([]byte(nil), key...), value...))
	require.NoError(t, err)

	put := &pb.Message{
		Type: pb.PutValue,
		Key:  key,
		Record: &pb.Record{
			Key:       key,
			Value:     value,
			Author:    id.PublicKeyMessage(),
			Signature: sig,
			Time:      1234,
		},
	}

	var putStream recordingStream
	res := h.Handle(put.Marshal(), &putStream)
	require.NoError(t, res.Err)
	require.True(t, res.Stop)
	require.Zero(t, putStream.Len())

	get := &pb.Message{Type: pb.GetValue, Key: key}
	var getStream recordingStream
	res = h.Handle(get.Marshal(), &getStream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, getStream.Bytes())
	require.NotNil(t, reply.Record)
	require.Equal(t, value, reply.Record.Value)
}

func TestPutValueRejectsBadSignature(t *testing.T) {
	h, _ := newTestHandler(t)

	id, err := secio.GenerateIdentity(1024)
	require.NoError(t, err)

	put := &pb.Message{
		Type: pb.PutValue,
		Record: &pb.Record{
			Key:       []byte("k"),
			Value:     []byte("v"),
			Author:    id.PublicKeyMessage(),
			Signature: []byte("not-a-real-signature"),
		},
	}

	var stream recordingStream
	res := h.Handle(put.Marshal(), &stream)
	require.Error(t, res.Err)
}

func TestGetValueFallsBackToCloserPeers(t *testing.T) {
	h, self := newTestHandler(t)
	other := peer.ID("other-peer")
	h.peerstore.GetOrAdd(other)
	h.peerstore.GetOrAdd(self)

	get := &pb.Message{Type: pb.GetValue, Key: []byte("unknown-key")}
	var stream recordingStream
	res := h.Handle(get.Marshal(), &stream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, stream.Bytes())
	require.Nil(t, reply.Record)
	require.Len(t, reply.CloserPeers, 1)
	require.Equal(t, []byte(other), reply.CloserPeers[0].ID)
}

func TestAddProviderRejectsPeerIDMismatch(t *testing.T) {
	h, _ := newTestHandler(t)

	claimed, err := peer.IDFromPublicKey([]byte("claimed-key-material"))
	require.NoError(t, err)
	other, err := peer.IDFromPublicKey([]byte("a-different-key-material"))
	require.NoError(t, err)
	wrongAddr, err := addr.Parse("/ip4/127.0.0.1/tcp/4001/ipfs/" + other.String())
	require.NoError(t, err)

	msg := &pb.Message{
		Type: pb.AddProvider,
		Key:  []byte("content-key"),
		ProviderPeers: []pb.Peer{
			{ID: []byte(claimed), Addrs: [][]byte{wrongAddr.Bytes()}},
		},
	}

	var stream recordingStream
	res := h.Handle(msg.Marshal(), &stream)
	require.ErrorIs(t, res.Err, ErrProviderPeerIDMismatch)
	require.False(t, h.providerstore.Has([]byte("content-key")))
}

func TestAddProviderThenGetProvidersIncludesIt(t *testing.T) {
	h, _ := newTestHandler(t)

	claimed, err := peer.IDFromPublicKey([]byte("claimed-key-material"))
	require.NoError(t, err)
	goodAddr, err := addr.Parse("/ip4/127.0.0.1/tcp/4001/ipfs/" + claimed.String())
	require.NoError(t, err)

	addMsg := &pb.Message{
		Type: pb.AddProvider,
		Key:  []byte("content-key"),
		ProviderPeers: []pb.Peer{
			{ID: []byte(claimed), Addrs: [][]byte{goodAddr.Bytes()}},
		},
	}
	var addStream recordingStream
	res := h.Handle(addMsg.Marshal(), &addStream)
	require.NoError(t, res.Err)
	require.True(t, h.peerstore.Has(claimed))

	getMsg := &pb.Message{Type: pb.GetProviders, Key: []byte("content-key")}
	var getStream recordingStream
	res = h.Handle(getMsg.Marshal(), &getStream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, getStream.Bytes())
	require.Len(t, reply.ProviderPeers, 1)
	require.Equal(t, []byte(claimed), reply.ProviderPeers[0].ID)
}

func TestGetProvidersIncludesSelfWhenBlockstoreHasContent(t *testing.T) {
	self := peer.ID("local-node")
	bs := block.NewMemStore()
	blk, err := block.New(0x55, []byte("raw-data"))
	require.NoError(t, err)
	_, err = bs.Put(blk)
	require.NoError(t, err)

	h := NewHandler(self, peer.NewPeerstore(), peer.NewProviderstore(), datastore.NewMemDatastore(), bs)

	msg := &pb.Message{Type: pb.GetProviders, Key: blk.Cid().Bytes()}
	var stream recordingStream
	res := h.Handle(msg.Marshal(), &stream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, stream.Bytes())
	require.Len(t, reply.ProviderPeers, 1)
	require.Equal(t, []byte(self), reply.ProviderPeers[0].ID)
}

func TestFindNodeExactMatch(t *testing.T) {
	h, _ := newTestHandler(t)
	target := peer.ID("target-peer")
	h.peerstore.GetOrAdd(target)

	msg := &pb.Message{Type: pb.FindNode, Key: []byte(target)}
	var stream recordingStream
	res := h.Handle(msg.Marshal(), &stream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, stream.Bytes())
	require.Len(t, reply.ProviderPeers, 1)
	require.Equal(t, []byte(target), reply.ProviderPeers[0].ID)
	require.Empty(t, reply.CloserPeers)
}

func TestPing(t *testing.T) {
	h, _ := newTestHandler(t)
	msg := &pb.Message{Type: pb.Ping, Key: []byte("echo-me")}
	var stream recordingStream
	res := h.Handle(msg.Marshal(), &stream)
	require.NoError(t, res.Err)

	reply := decodeReply(t, stream.Bytes())
	require.Equal(t, []byte("echo-me"), reply.Key)
}
