package cli

import (
	"context"
	"fmt"

	"github.com/barrystyle/libipfs-go/node"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func idCmd() *ffcli.Command {
	fs, repoPath := repoFlags("id")
	return &ffcli.Command{
		Name:       "id",
		ShortUsage: "ipfsnode id [flags]",
		ShortHelp:  "print this repo's peer id",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			nd, err := node.New(ctx, node.Options{RepoPath: *repoPath})
			if err != nil {
				return err
			}
			defer nd.Close()
			fmt.Println(nd.ID())
			return nil
		},
	}
}
