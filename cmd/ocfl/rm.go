package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
)

var rmCmd = &coral.Command{
	Use:   "rm <object-id> <path>",
	Short: "remove a logical path from a staged draft",
	Long:  "rm removes path from object-id's open draft's next version. Earlier versions are unaffected.",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 2 {
			return usageErrorf("rm takes exactly two arguments: object-id, path")
		}
		id, p := args[0], args[1]
		logical, err := ocfl.NewInventoryPath(p)
		if err != nil {
			return usageErrorf("%w", err)
		}
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		draft, err := r.StageNextVersion(ctx, id)
		if err != nil {
			return err
		}
		if err := draft.DeleteFile(ctx, logical); err != nil {
			draft.Release(ctx)
			return err
		}
		if err := draft.Release(ctx); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("removed"), p, "from", id)
		return nil
	},
}
