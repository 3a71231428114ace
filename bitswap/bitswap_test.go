package bitswap

import (
	"testing"

	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/stretchr/testify/require"
)

// nopStream is the minimal protocol.Stream a Handle call never needs to
// actually use, since Handle closes without reading or writing.
type nopStream struct{}

func (nopStream) Write(p []byte) (int, error) { return len(p), nil }
func (nopStream) Read(p []byte) (int, error)  { return 0, nil }
func (nopStream) Close() error                { return nil }

func TestHandlerID(t *testing.T) {
	h := NewHandler()
	require.Equal(t, "/ipfs/bitswap/1.0.0", h.ID())
}

func TestHandlerCanHandle(t *testing.T) {
	h := NewHandler()
	require.True(t, h.CanHandle("/ipfs/bitswap/1.0.0"))
	require.True(t, h.CanHandle("/ipfs/bitswap/1.0.0/want-list"))
	require.False(t, h.CanHandle("/ipfs/kad/1.0.0"))
}

func TestHandlerHandleNoOps(t *testing.T) {
	h := NewHandler()
	result := h.Handle([]byte("anything"), nopStream{})
	require.True(t, result.Stop)
	require.NoError(t, result.Err)
}

func TestHandlerShutdownIsSafe(t *testing.T) {
	h := NewHandler()
	h.Shutdown()
}

var _ protocol.Handler = (*Handler)(nil)
