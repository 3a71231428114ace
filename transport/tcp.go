package transport

import (
	"context"
	"net"

	"github.com/barrystyle/libipfs-go/addr"
)

// TCP dials and listens on "/ip4|ip6/.../tcp/..." multiaddresses.
type TCP struct {
	dialer net.Dialer
}

// NewTCP creates a TCP transport.
func NewTCP() *TCP {
	return &TCP{}
}

// CanDial reports whether a carries a tcp network segment.
func (t *TCP) CanDial(a addr.Multiaddr) bool {
	_, _, ok := a.HostPort()
	return ok
}

// Dial opens a TCP connection to a, honoring ctx's deadline.
func (t *TCP) Dial(ctx context.Context, a addr.Multiaddr) (net.Conn, error) {
	host, port, ok := a.HostPort()
	if !ok {
		return nil, ErrNoTransport{Addr: a.String()}
	}
	return t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
}

// Listen opens a TCP listener bound to a's host/port.
func (t *TCP) Listen(a addr.Multiaddr) (net.Listener, error) {
	host, port, ok := a.HostPort()
	if !ok {
		return nil, ErrNoTransport{Addr: a.String()}
	}
	return net.Listen("tcp", net.JoinHostPort(host, port))
}
