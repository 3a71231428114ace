// Command ipfsnode runs a libp2p-compatible content-addressed networking
// node: identity, Kademlia DHT, and journal anti-entropy replication over
// a yamux-multiplexed, secio-encrypted swarm.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/barrystyle/libipfs-go/cmd/ipfsnode/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
