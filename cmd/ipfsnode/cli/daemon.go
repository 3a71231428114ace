package cli

import (
	"context"
	"strings"

	"github.com/barrystyle/libipfs-go/node"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func daemonCmd() *ffcli.Command {
	fs, repoPath := repoFlags("daemon")
	offline := fs.Bool("offline", false, "run with the offline routing facade (no network fan-out)")
	return &ffcli.Command{
		Name:       "daemon",
		ShortUsage: "ipfsnode daemon [flags]",
		ShortHelp:  "run the node: listen, bootstrap, and replicate until stopped",
		LongHelp: strings.TrimSpace(`

The 'ipfsnode daemon' command listens on the repo's configured swarm
address, connects to its configured bootstrap peers, and drives the
journal's periodic anti-entropy replication until the process is
interrupted. It does not take on process supervision (pidfile, restart
policy) — that is left to whatever runs this binary.

`),
		FlagSet: fs,
		Exec: func(ctx context.Context, args []string) error {
			mode := node.ModeOnline
			if *offline {
				mode = node.ModeOffline
			}
			nd, err := node.New(ctx, node.Options{RepoPath: *repoPath, Mode: mode})
			if err != nil {
				return err
			}
			defer nd.Close()
			return nd.Run(ctx)
		},
	}
}
