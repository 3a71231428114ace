package transport

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/stretchr/testify/require"
)

func TestTCPListenDial(t *testing.T) {
	listenAddr, err := addr.Parse("/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)

	tcp := NewTCP()
	ln, err := tcp.Listen(listenAddr)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()
		close(accepted)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	dialAddr, err := addr.Parse("/ip4/127.0.0.1/tcp/" + strconv.Itoa(port))
	require.NoError(t, err)
	require.True(t, tcp.CanDial(dialAddr))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := tcp.Dial(ctx, dialAddr)
	require.NoError(t, err)
	defer conn.Close()

	<-accepted
}

func TestRegistryNoTransport(t *testing.T) {
	r := NewRegistry()
	a, err := addr.Parse("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)

	_, err = r.Dial(context.Background(), a)
	require.Error(t, err)
	var noTransport ErrNoTransport
	require.ErrorAs(t, err, &noTransport)
}
