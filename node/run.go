package node

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Run starts listening on the repo's configured swarm address, fires off
// the bootstrap fan-out, and blocks driving the journal's periodic
// replication ticker until ctx is cancelled — the same start/stop shape
// original_source/libipfs/core/daemon.c's main loop has, without taking on
// that file's process supervision (signal handling lives in cmd/ipfsnode;
// no pidfile is written anywhere; spec.md §1 Non-goals excludes daemon
// supervision from this package).
func (nd *Node) Run(ctx context.Context) error {
	if err := nd.ListenDefault(); err != nil {
		return err
	}
	log.Info().Str("id", nd.ID().String()).Interface("addrs", nd.ListenAddrs()).Msg("node: listening")

	go nd.Bootstrap(ctx)
	go nd.journal.Run(ctx, nd.replicationInterval)

	<-ctx.Done()
	log.Info().Msg("node: shutting down")
	return nil
}
