package identify

import (
	"context"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
)

// ChannelOpener opens an application-protocol channel to a peer — the
// same narrow dial interface routing.ChannelOpener and journal.ChannelOpener
// model, duplicated here for the same reason: identify has no import-time
// dependency on swarm.
type ChannelOpener interface {
	OpenStream(ctx context.Context, id peer.ID, protocolID string) (protocol.Stream, error)
}

// Request dials id's identify channel, sends an empty request, and
// returns the decoded reply plus its listen addresses as addr.Multiaddr.
func Request(ctx context.Context, opener ChannelOpener, id peer.ID) (*pb.IdentifyMessage, []addr.Multiaddr, error) {
	stream, err := opener.OpenStream(ctx, id, ID)
	if err != nil {
		return nil, nil, err
	}
	defer stream.Close()

	if err := pb.WriteDelimited(stream, nil); err != nil {
		return nil, nil, err
	}
	raw, err := pb.ReadDelimited(stream)
	if err != nil {
		return nil, nil, err
	}
	reply, err := pb.UnmarshalIdentifyMessage(raw)
	if err != nil {
		return nil, nil, err
	}

	addrs := make([]addr.Multiaddr, 0, len(reply.ListenAddrs))
	for _, raw := range reply.ListenAddrs {
		a, err := addr.FromBytes(raw)
		if err != nil {
			continue
		}
		addrs = append(addrs, a)
	}
	return reply, addrs, nil
}
