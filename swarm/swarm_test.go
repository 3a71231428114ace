package swarm

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/dht"
	"github.com/barrystyle/libipfs-go/identify"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/barrystyle/libipfs-go/transport"
	"github.com/stretchr/testify/require"
)

// freeTCPAddr reserves an ephemeral port by binding and releasing it, so
// the swarm under test can bind the same port deterministically.
func freeTCPAddr(t *testing.T) addr.Multiaddr {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	a, err := addr.Parse(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", port))
	require.NoError(t, err)
	return a
}

func newTestSwarm(t *testing.T, registry *protocol.Registry) (*Swarm, *secio.Identity) {
	t.Helper()
	identity, err := secio.GenerateIdentity(1024)
	require.NoError(t, err)
	ps := peer.NewPeerstore()
	tr := transport.NewRegistry(transport.NewTCP())
	return New(identity, ps, registry, tr), identity
}

func TestSwarmDialNegotiatesIdentify(t *testing.T) {
	serverRegistry := protocol.NewRegistry()
	server, serverID := newTestSwarm(t, serverRegistry)
	serverRegistry.Register(identify.NewHandler(serverID, server.ListenAddrs, server.Protocols))

	listenAddr := freeTCPAddr(t)
	require.NoError(t, server.Listen(listenAddr))
	defer server.Close()

	client, _ := newTestSwarm(t, protocol.NewRegistry())
	defer client.Close()
	client.peerstoreAddPeer(serverID.ID(), listenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, addrs, err := identify.Request(ctx, client, serverID.ID())
	require.NoError(t, err)
	require.Equal(t, serverID.PublicKeyMessage(), reply.PublicKey)
	require.Len(t, addrs, 1)
	require.Equal(t, listenAddr.String(), addrs[0].String())
}

func TestSwarmDialNegotiatesDHTPing(t *testing.T) {
	serverRegistry := protocol.NewRegistry()
	server, serverID := newTestSwarm(t, serverRegistry)
	serverPS := peer.NewPeerstore()
	handler := dht.NewHandler(serverID.ID(), serverPS, peer.NewProviderstore(), datastore.NewMemDatastore(), block.NewMemStore())
	serverRegistry.Register(handler)

	listenAddr := freeTCPAddr(t)
	require.NoError(t, server.Listen(listenAddr))
	defer server.Close()

	client, _ := newTestSwarm(t, protocol.NewRegistry())
	defer client.Close()
	client.peerstoreAddPeer(serverID.ID(), listenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.OpenStream(ctx, serverID.ID(), dht.ID)
	require.NoError(t, err)
	defer stream.Close()

	ping := &pb.Message{Type: pb.Ping, Key: []byte("ping-payload")}
	require.NoError(t, pb.WriteDelimited(stream, ping.Marshal()))

	raw, err := pb.ReadDelimited(stream)
	require.NoError(t, err)
	reply, err := pb.UnmarshalMessage(raw)
	require.NoError(t, err)
	require.Equal(t, []byte("ping-payload"), reply.Key)
}

func TestSwarmMultiplexIndependence(t *testing.T) {
	serverRegistry := protocol.NewRegistry()
	server, serverID := newTestSwarm(t, serverRegistry)
	serverRegistry.Register(identify.NewHandler(serverID, server.ListenAddrs, server.Protocols))
	serverPS := peer.NewPeerstore()
	bs := block.NewMemStore()
	providers := peer.NewProviderstore()
	serverRegistry.Register(dht.NewHandler(serverID.ID(), serverPS, providers, datastore.NewMemDatastore(), bs))

	listenAddr := freeTCPAddr(t)
	require.NoError(t, server.Listen(listenAddr))
	defer server.Close()

	client, _ := newTestSwarm(t, protocol.NewRegistry())
	defer client.Close()
	client.peerstoreAddPeer(serverID.ID(), listenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	identifyDone := make(chan struct{})
	go func() {
		defer close(identifyDone)
		_, _, err := identify.Request(ctx, client, serverID.ID())
		require.NoError(t, err)
	}()

	dhtDone := make(chan struct{})
	go func() {
		defer close(dhtDone)
		stream, err := client.OpenStream(ctx, serverID.ID(), dht.ID)
		require.NoError(t, err)
		defer stream.Close()
		req := &pb.Message{Type: pb.GetProviders, Key: []byte("some-key")}
		require.NoError(t, pb.WriteDelimited(stream, req.Marshal()))
		_, err = pb.ReadDelimited(stream)
		require.NoError(t, err)
	}()

	select {
	case <-identifyDone:
	case <-time.After(5 * time.Second):
		t.Fatal("identify channel never completed")
	}
	select {
	case <-dhtDone:
	case <-time.After(5 * time.Second):
		t.Fatal("dht channel never completed")
	}
}

// peerstoreAddPeer is a test-only helper reaching into the swarm's
// peerstore, mirroring what routing.Online.Bootstrap does in production.
func (s *Swarm) peerstoreAddPeer(id peer.ID, a addr.Multiaddr) {
	s.peerstore.GetOrAdd(id, a)
}
