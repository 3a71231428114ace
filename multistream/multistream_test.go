package multistream

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDialAccept(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		selected, err := Accept(server, func(id string) bool {
			return id == "/ipfs/kad/1.0.0"
		}, nil)
		if err != nil {
			errs <- err
			return
		}
		done <- selected
	}()

	deadline := time.Now().Add(2 * time.Second)
	client.SetDeadline(deadline)
	server.SetDeadline(deadline)

	err := Dial(client, "/ipfs/kad/1.0.0")
	require.NoError(t, err)

	select {
	case selected := <-done:
		require.Equal(t, "/ipfs/kad/1.0.0", selected)
	case err := <-errs:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestDialUnsupportedProtocol(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	deadline := time.Now().Add(2 * time.Second)
	client.SetDeadline(deadline)
	server.SetDeadline(deadline)

	errs := make(chan error, 1)
	go func() {
		_, err := Accept(server, func(id string) bool { return false }, nil)
		errs <- err
	}()

	err := Dial(client, "/ipfs/unknown/1.0.0")
	require.ErrorIs(t, err, ErrNotAvailable)
}
