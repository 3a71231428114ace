// Package addr wraps the self-describing layered multiaddress type used
// throughout the node (spec.md §3 "Multiaddress").
package addr

import (
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	mb "github.com/multiformats/go-multibase"
)

// Multiaddr is an immutable, self-describing network address such as
// "/ip4/127.0.0.1/tcp/4001/ipfs/QmPeer...".
type Multiaddr struct {
	m ma.Multiaddr
}

// Parse builds a Multiaddr from its string form.
func Parse(s string) (Multiaddr, error) {
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return Multiaddr{}, err
	}
	return Multiaddr{m: m}, nil
}

// FromBytes builds a Multiaddr from its binary encoding, as carried in a
// pb.Peer.Addrs entry.
func FromBytes(b []byte) (Multiaddr, error) {
	m, err := ma.NewMultiaddrBytes(b)
	if err != nil {
		return Multiaddr{}, err
	}
	return Multiaddr{m: m}, nil
}

// Bytes returns the binary encoding suitable for the wire.
func (a Multiaddr) Bytes() []byte {
	if a.m == nil {
		return nil
	}
	return a.m.Bytes()
}

// String returns the human-readable slash-separated form.
func (a Multiaddr) String() string {
	if a.m == nil {
		return ""
	}
	return a.m.String()
}

// IsZero reports whether a was never successfully constructed.
func (a Multiaddr) IsZero() bool { return a.m == nil }

// PeerID extracts the trailing "/ipfs/<peer-id>" (or "/p2p/<peer-id>")
// component of the address, if present.
func (a Multiaddr) PeerID() (string, bool) {
	if a.m == nil {
		return "", false
	}
	s := a.m.String()
	for _, proto := range []string{"/ipfs/", "/p2p/"} {
		if i := strings.LastIndex(s, proto); i >= 0 {
			return s[i+len(proto):], true
		}
	}
	return "", false
}

// HostPort extracts the "/ip4|ip6/<host>/tcp/<port>" network segment,
// dropping any trailing peer-id component. Used by the TCP transport dialer.
func (a Multiaddr) HostPort() (host string, port string, ok bool) {
	if a.m == nil {
		return "", "", false
	}
	var h, p string
	ma.ForEach(a.m, func(c ma.Component) bool {
		switch c.Protocol().Code {
		case ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6:
			h = c.Value()
		case ma.P_TCP:
			p = c.Value()
		}
		return true
	})
	if h == "" || p == "" {
		return "", "", false
	}
	return h, p, true
}

// EncodeBase32 renders raw bytes using the multibase base32 alphabet, used
// for the occasional human-readable log field where a full multiaddr
// string would be noisy.
func EncodeBase32(b []byte) (string, error) {
	return mb.Encode(mb.Base32, b)
}
