package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/barrystyle/libipfs-go/config"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func initCmd() *ffcli.Command {
	fs, repoPath := repoFlags("init")
	return &ffcli.Command{
		Name:       "init",
		ShortUsage: "ipfsnode init [flags]",
		ShortHelp:  "create a new repo: generate an identity key and default config",
		LongHelp: strings.TrimSpace(`

The 'ipfsnode init' command scaffolds a fresh repo directory: generates a
2048-bit RSA identity key and writes a default config.toml, the same
first-run sequence original_source/libipfs/repo/init.c performs. It
refuses to run against a repo that already has a config.toml.

`),
		FlagSet: fs,
		Exec: func(ctx context.Context, args []string) error {
			path, err := config.RepoPath(*repoPath)
			if err != nil {
				return err
			}
			identity, err := config.InitRepo(path)
			if err != nil {
				return err
			}
			fmt.Printf("initialized repo at %s\n", path)
			fmt.Printf("peer identity: %s\n", identity.ID())
			return nil
		},
	}
}
