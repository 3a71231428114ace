package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/barrystyle/libipfs-go/pb"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// RunReplication performs one outbound replication round with id: open a
// journalio channel, send this node's digest, reconcile the reply
// (spec.md §4.9 "Reply carries the replication-peer's own last-seen
// timestamp so the remote can mark progress").
func (j *Journal) RunReplication(ctx context.Context, id peer.ID) error {
	digest, err := j.buildDigest(time.Now().Unix())
	if err != nil {
		return fmt.Errorf("journal: build digest: %w", err)
	}

	stream, err := j.opener.OpenStream(ctx, id, ID)
	if err != nil {
		return fmt.Errorf("journal: open channel: %w", err)
	}
	defer stream.Close()

	if err := pb.WriteDelimited(stream, digest.Marshal()); err != nil {
		return fmt.Errorf("journal: write digest: %w", err)
	}
	raw, err := pb.ReadDelimited(stream)
	if err != nil {
		return fmt.Errorf("journal: read reply: %w", err)
	}
	reply, err := pb.UnmarshalJournalMessage(raw)
	if err != nil {
		return fmt.Errorf("journal: decode reply: %w", err)
	}
	return j.reconcile(ctx, reply, time.Now().Unix())
}

// Run drives the periodic dispatcher: every interval, replicate against
// each approved peer in turn, backing off the log-only retry pacing on
// repeated failure the way exchange.Replication.Dispatch backs off its
// request retries. Run blocks until ctx is done.
func (j *Journal) Run(ctx context.Context, interval time.Duration) {
	b := &backoff.Backoff{Min: interval, Max: 10 * interval}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			round := uuid.New().String()
			for _, id := range j.approved() {
				if err := j.RunReplication(ctx, id); err != nil {
					log.Debug().Err(err).Str("round", round).Str("peer", id.String()).
						Dur("next_backoff", b.Duration()).
						Msg("journal: replication round failed")
					continue
				}
				log.Debug().Str("round", round).Str("peer", id.String()).Msg("journal: replication round ok")
				b.Reset()
			}
		}
	}
}
