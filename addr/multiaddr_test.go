package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	a, err := Parse("/ip4/127.0.0.1/tcp/4101/ipfs/QmA1234567890")
	require.NoError(t, err)

	pid, ok := a.PeerID()
	require.True(t, ok)
	require.Equal(t, "QmA1234567890", pid)

	host, port, ok := a.HostPort()
	require.True(t, ok)
	require.Equal(t, "127.0.0.1", host)
	require.Equal(t, "4101", port)

	b, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	require.Equal(t, a.String(), b.String())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-a-multiaddr")
	require.Error(t, err)
}
