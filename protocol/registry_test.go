package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	id          string
	shutdownHit bool
}

func (s *stubHandler) ID() string              { return s.id }
func (s *stubHandler) CanHandle(id string) bool { return id == s.id }
func (s *stubHandler) Handle(msg []byte, stream Stream) Result {
	return Result{Stop: true}
}
func (s *stubHandler) Shutdown() { s.shutdownHit = true }

func TestRegistryDispatchesFirstMatch(t *testing.T) {
	r := NewRegistry()
	kad := &stubHandler{id: "/ipfs/kad/1.0.0"}
	journal := &stubHandler{id: "/ipfs/journalio/1.0.0"}
	r.Register(kad)
	r.Register(journal)

	h, ok := r.Match("/ipfs/kad/1.0.0")
	require.True(t, ok)
	require.Same(t, kad, h)

	_, ok = r.Match("/ipfs/unknown/1.0.0")
	require.False(t, ok)
}

func TestRegistryShutdownCallsEveryHandler(t *testing.T) {
	r := NewRegistry()
	a := &stubHandler{id: "/a"}
	b := &stubHandler{id: "/b"}
	r.Register(a)
	r.Register(b)

	r.Shutdown()
	require.True(t, a.shutdownHit)
	require.True(t, b.shutdownHit)
}

func TestPrefixMatch(t *testing.T) {
	require.True(t, PrefixMatch("/ipfs/kad/1.0.0", "/ipfs/kad/1.0.0"))
	require.False(t, PrefixMatch("/ipfs/kad/1.0.0", "/ipfs/kad"))
}
