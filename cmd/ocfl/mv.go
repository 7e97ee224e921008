package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
)

var mvCmd = &coral.Command{
	Use:   "mv <object-id> <src> <dst>",
	Short: "rename a logical path in a staged draft",
	Long:  "mv renames src to dst in object-id's open draft. No content is moved.",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 3 {
			return usageErrorf("mv takes exactly three arguments: object-id, src, dst")
		}
		id, src, dst := args[0], args[1], args[2]
		srcPath, err := ocfl.NewInventoryPath(src)
		if err != nil {
			return usageErrorf("%w", err)
		}
		dstPath, err := ocfl.NewInventoryPath(dst)
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
		if err := draft.MoveFile(ctx, srcPath, dstPath); err != nil {
			draft.Release(ctx)
			return err
		}
		if err := draft.Release(ctx); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("moved"), src, "->", dst, "in", id)
		return nil
	},
}
