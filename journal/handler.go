package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/rs/zerolog/log"
)

// ID returns the registered protocol string.
func (j *Journal) ID() string { return ID }

// CanHandle matches the journal protocol id or any versioned sub-path.
func (j *Journal) CanHandle(id string) bool { return protocol.PrefixMatch(j.ID(), id) }

// Shutdown is a no-op; Journal holds no resources Handle doesn't already
// own through its datastore/fetcher/opener collaborators.
func (j *Journal) Shutdown() {}

// Handle answers one inbound digest: reconcile it against the local
// datastore (spec.md §4.9's three-step algorithm), then reply with this
// node's own digest so the remote can mark its progress against it.
func (j *Journal) Handle(msg []byte, stream protocol.Stream) protocol.Result {
	incoming, err := pb.UnmarshalJournalMessage(msg)
	if err != nil {
		return protocol.Result{Stop: true, Err: fmt.Errorf("journal: decode message: %w", err)}
	}

	now := time.Now().Unix()
	if err := j.reconcile(context.Background(), incoming, now); err != nil {
		if errors.Is(err, ErrClockSkew) {
			log.Debug().Msg("journal: dropping digest outside clock tolerance")
			return protocol.Result{Stop: true}
		}
		return protocol.Result{Stop: true, Err: err}
	}

	reply, err := j.buildDigest(now)
	if err != nil {
		return protocol.Result{Stop: true, Err: fmt.Errorf("journal: build reply digest: %w", err)}
	}
	if err := pb.WriteDelimited(stream, reply.Marshal()); err != nil {
		return protocol.Result{Stop: true, Err: fmt.Errorf("journal: write reply: %w", err)}
	}
	return protocol.Result{Stop: true}
}
