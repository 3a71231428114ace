// Package node assembles every other package into a running peer: identity
// and repo (config), stores (datastore, blockstore, peerstore,
// providerstore), the protocol registry, the swarm, and the routing
// facade, then drives the journal's periodic replication loop. Grounded
// in node/popn.go's New (the teacher's own single assembly point for
// identity, connection manager, exchange, and bootstrap) and
// original_source/libipfs/core/daemon.c's start/stop sequence, generalized
// from the teacher's Filecoin-exchange wiring to the registry of
// DHT/Journal/Identify handlers this spec requires.
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/barrystyle/libipfs-go/addr"
	"github.com/barrystyle/libipfs-go/bitswap"
	"github.com/barrystyle/libipfs-go/block"
	"github.com/barrystyle/libipfs-go/config"
	"github.com/barrystyle/libipfs-go/datastore"
	"github.com/barrystyle/libipfs-go/dht"
	"github.com/barrystyle/libipfs-go/identify"
	"github.com/barrystyle/libipfs-go/journal"
	"github.com/barrystyle/libipfs-go/peer"
	"github.com/barrystyle/libipfs-go/protocol"
	"github.com/barrystyle/libipfs-go/routing"
	"github.com/barrystyle/libipfs-go/secio"
	"github.com/barrystyle/libipfs-go/swarm"
	"github.com/barrystyle/libipfs-go/transport"
	"github.com/rs/zerolog/log"
)

// Mode selects whether the routing facade talks to the network (Online)
// or answers only from local state (Offline), spec.md §4.10.
type Mode int

const (
	ModeOnline Mode = iota
	ModeOffline
)

// ErrNotInitialized is returned by New when RepoPath names a directory
// whose config file cannot be loaded, telling the caller to run "init" first
// (mirrors original_source/libipfs/repo/init.c refusing to run against an
// unscaffolded repo).
var ErrNotInitialized = errors.New("node: repo not initialized, run init first")

// Options configures a Node, the same role the teacher's Options struct
// (RepoPath, SocketPath, BootstrapPeers, ...) plays in node/popn.go,
// narrowed to this spec's scope (no Filecoin/storage-deal fields).
type Options struct {
	// RepoPath is the repo directory; empty resolves via config.RepoPath.
	RepoPath string
	// Mode selects Online or Offline routing.
	Mode Mode
	// ReplicationInterval is how often the journal dispatches a digest
	// round to its approved peers; zero uses DefaultReplicationInterval.
	ReplicationInterval time.Duration
	// UseMemDatastore keeps everything in-memory instead of opening a
	// badger store on disk, for tests and ephemeral nodes.
	UseMemDatastore bool
}

// DefaultReplicationInterval is how often journal.Run dispatches a round
// when Options.ReplicationInterval is unset.
const DefaultReplicationInterval = 5 * time.Minute

// Node is an assembled, addressable peer: its identity, stores, swarm, and
// routing facade, ready to Listen/Run.
type Node struct {
	identity *secio.Identity
	cfg      config.Config

	ds datastore.Datastore
	bs block.Blockstore

	peerstore     *peer.Peerstore
	providerstore *peer.Providerstore

	registry  *protocol.Registry
	transport *transport.Registry
	swarm     *swarm.Swarm

	routing routing.Routing
	journal *journal.Journal

	replicationInterval time.Duration

	closers []func() error
}

// New loads (or, if UseMemDatastore, fabricates) a repo's identity and
// config, wires every protocol handler into one swarm, and returns an
// assembled Node. It does not listen or start replication; call Listen
// and Run for that.
func New(ctx context.Context, opts Options) (*Node, error) {
	repoPath, identity, cfg, closers, err := loadRepo(opts)
	if err != nil {
		return nil, err
	}

	nd := &Node{
		identity:            identity,
		cfg:                 cfg,
		peerstore:           peer.NewPeerstore(),
		providerstore:       peer.NewProviderstore(),
		registry:            protocol.NewRegistry(),
		transport:           transport.NewRegistry(transport.NewTCP()),
		replicationInterval: opts.ReplicationInterval,
		closers:             closers,
	}
	if nd.replicationInterval == 0 {
		nd.replicationInterval = DefaultReplicationInterval
	}

	if opts.UseMemDatastore {
		nd.ds = datastore.NewMemDatastore()
	} else {
		bds, err := datastore.OpenBadger(filepath.Join(repoPath, "datastore"))
		if err != nil {
			return nil, fmt.Errorf("node: open datastore: %w", err)
		}
		nd.ds = bds
		nd.closers = append(nd.closers, bds.Close)
	}
	// Non-goal: on-disk blockstore file layout. Block bodies stay
	// in-memory; only datastore records (the journal's hash, timestamp and
	// pin entries, and DHT value records) are persisted.
	nd.bs = block.NewMemStore()

	nd.swarm = swarm.New(identity, nd.peerstore, nd.registry, nd.transport)

	self := identity.ID()
	nd.registry.Register(dht.NewHandler(self, nd.peerstore, nd.providerstore, nd.ds, nd.bs))
	nd.registry.Register(identify.NewHandler(identity, nd.swarm.ListenAddrs, nd.swarm.Protocols))
	nd.registry.Register(bitswap.NewHandler())

	nd.journal = journal.New(self, nd.ds, nil, nd.swarm)
	nd.registry.Register(nd.journal)

	switch opts.Mode {
	case ModeOffline:
		nd.routing = routing.NewOffline(self, nd.peerstore, nd.providerstore, nd.ds, nd.bs)
	default:
		nd.routing = routing.NewOnline(self, identity, nd.peerstore, nd.providerstore, nd.ds, nd.bs, nd.swarm, nd.swarm.ListenAddrs)
	}

	return nd, nil
}

// loadRepo resolves the repo directory and loads its identity/config, or
// synthesizes both in memory when UseMemDatastore asks for an ephemeral
// node (tests, one-shot tools) with no backing directory.
func loadRepo(opts Options) (string, *secio.Identity, config.Config, []func() error, error) {
	if opts.UseMemDatastore && opts.RepoPath == "" {
		identity, err := secio.GenerateIdentity(identityKeyBitsForTests)
		if err != nil {
			return "", nil, config.Config{}, nil, fmt.Errorf("node: generate ephemeral identity: %w", err)
		}
		return "", identity, config.Default(""), nil, nil
	}

	path, err := config.RepoPath(opts.RepoPath)
	if err != nil {
		return "", nil, config.Config{}, nil, fmt.Errorf("node: resolve repo path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(path, config.FileName))
	if err != nil {
		return "", nil, config.Config{}, nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
	}
	identity, err := config.LoadIdentity(cfg.IdentityKeyPath)
	if err != nil {
		return "", nil, config.Config{}, nil, fmt.Errorf("node: load identity: %w", err)
	}
	return path, identity, cfg, nil, nil
}

// identityKeyBitsForTests keeps ephemeral in-memory nodes cheap to spin up
// by the dozen in integration tests; persisted repos always use
// config.InitRepo's full 2048-bit key.
const identityKeyBitsForTests = 1024

// ID returns this node's peer id.
func (nd *Node) ID() peer.ID { return nd.identity.ID() }

// Routing returns the assembled routing facade.
func (nd *Node) Routing() routing.Routing { return nd.routing }

// ListenAddrs returns the swarm's currently bound addresses.
func (nd *Node) ListenAddrs() []addr.Multiaddr { return nd.swarm.ListenAddrs() }

// Approve admits a peer into the journal's replication set (spec.md §4.9
// "approved peers"); Revoke removes it.
func (nd *Node) Approve(id peer.ID) { nd.journal.Approve(id) }
func (nd *Node) Revoke(id peer.ID)  { nd.journal.Revoke(id) }

// Listen starts accepting inbound connections on a, registering it as one
// of this node's advertised addresses.
func (nd *Node) Listen(a addr.Multiaddr) error {
	return nd.swarm.Listen(a)
}

// ListenDefault parses and listens on the repo config's swarm listen
// address.
func (nd *Node) ListenDefault() error {
	a, err := addr.Parse(nd.cfg.SwarmListenAddr)
	if err != nil {
		return fmt.Errorf("node: parse swarm listen addr %q: %w", nd.cfg.SwarmListenAddr, err)
	}
	return nd.Listen(a)
}

// Bootstrap connects to every address in the repo config's bootstrap peer
// list, the same best-effort fan-out node/popn.go's "go utils.Bootstrap"
// performs during New.
func (nd *Node) Bootstrap(ctx context.Context) {
	if len(nd.cfg.BootstrapPeers) == 0 {
		return
	}
	addrs := make([]addr.Multiaddr, 0, len(nd.cfg.BootstrapPeers))
	for _, s := range nd.cfg.BootstrapPeers {
		a, err := addr.Parse(s)
		if err != nil {
			log.Error().Err(err).Str("addr", s).Msg("node: skipping malformed bootstrap address")
			continue
		}
		addrs = append(addrs, a)
	}
	if err := nd.routing.Bootstrap(ctx, addrs); err != nil {
		log.Error().Err(err).Msg("node: bootstrap failed")
	}
}

// Close tears down the swarm, every registered handler, and any owned
// on-disk datastore handle.
func (nd *Node) Close() error {
	nd.registry.Shutdown()
	err := nd.swarm.Close()
	for _, c := range nd.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
