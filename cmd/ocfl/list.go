package main

import (
	"fmt"

	"github.com/muesli/coral"
)

var listFlags = struct {
	glob string
}{}

var listCmd = &coral.Command{
	Use:   "list",
	Short: "list objects in the storage root",
	Long:  "list enumerates every object whose id matches --glob (all objects by default).",
	RunE: func(cmd *coral.Command, args []string) error {
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		infos, err := r.Objects(ctx, listFlags.glob)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s  %s  %s\n", info.Head, info.ID, dimStyle.Render(info.Path))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFlags.glob, "glob", "", "only list object ids matching this path.Match pattern")
}
