// Package cli dispatches ipfsnode's subcommands via
// github.com/peterbourgon/ff/v3/ffcli, the same subcommand-tree pattern
// cmd/hop/cli/commit.go registers individual commands against, generalized
// from a single "commit" leaf to this spec's init/id/daemon set.
package cli

import (
	"context"
	"flag"

	"github.com/peterbourgon/ff/v3/ffcli"
)

// Run parses args against the root command tree and executes the matched
// subcommand.
func Run(ctx context.Context, args []string) error {
	root := &ffcli.Command{
		Name:       "ipfsnode",
		ShortUsage: "ipfsnode <subcommand> [flags]",
		ShortHelp:  "a libp2p-compatible content-addressed networking node",
		FlagSet:    flag.NewFlagSet("ipfsnode", flag.ExitOnError),
		Subcommands: []*ffcli.Command{
			initCmd(),
			idCmd(),
			daemonCmd(),
		},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}
	return root.ParseAndRun(ctx, args)
}

// repoFlags builds a flag set carrying the one flag every subcommand
// shares: which repo directory to operate against.
func repoFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	repoPath := fs.String("repo", "", "repo directory (defaults to $IPFS_PATH or $HOME/.ipfs)")
	return fs, repoPath
}
