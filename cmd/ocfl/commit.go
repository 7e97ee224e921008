package main

import (
	"fmt"

	"github.com/muesli/coral"
)

var commitFlags = struct {
	message string
	name    string
	address string
}{}

var commitCmd = &coral.Command{
	Use:   "commit <object-id>",
	Short: "promote a staged draft into a new object version",
	Long:  "commit finalizes object-id's open draft, writing its new version directory and inventory.",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("commit takes exactly one argument, the object id")
		}
		id := args[0]
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		draft, err := r.StageNextVersion(ctx, id)
		if err != nil {
			return err
		}
		user, err := committer(commitFlags.name, commitFlags.address)
		if err != nil {
			draft.Release(ctx)
			return err
		}
		if user != nil {
			if err := draft.SetUser(ctx, user); err != nil {
				draft.Release(ctx)
				return err
			}
		}
		if commitFlags.message != "" {
			if err := draft.SetMessage(ctx, commitFlags.message); err != nil {
				draft.Release(ctx)
				return err
			}
		}
		inv, err := draft.Commit(ctx)
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("committed"), id, inv.Head)
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVarP(&commitFlags.message, "message", "m", "", "commit message")
	commitCmd.Flags().StringVarP(&commitFlags.name, "name", "n", "", "committer name (overrides config default)")
	commitCmd.Flags().StringVarP(&commitFlags.address, "addr", "a", "", "committer address")
}
