package main

import (
	"fmt"
	"os"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
)

var cpFlags = struct {
	within bool
}{}

var cpCmd = &coral.Command{
	Use:   "cp <object-id> <src> <dst>",
	Short: "add or copy a file into a staged draft",
	Long: "cp stages src at logical path dst in object-id's open draft. " +
		"By default src is a path on the local filesystem; with --within, src is " +
		"itself a logical path already staged in the draft, and dst is mapped to the same content (no bytes are copied).",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 3 {
			return usageErrorf("cp takes exactly three arguments: object-id, src, dst")
		}
		id, src, dst := args[0], args[1], args[2]
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
		if cpFlags.within {
			srcPath, err := ocfl.NewInventoryPath(src)
			if err != nil {
				draft.Release(ctx)
				return usageErrorf("%w", err)
			}
			if err := draft.CopyFile(ctx, srcPath, dstPath); err != nil {
				draft.Release(ctx)
				return err
			}
		} else {
			f, err := os.Open(src)
			if err != nil {
				draft.Release(ctx)
				return err
			}
			defer f.Close()
			if err := draft.AddFile(ctx, dstPath, f); err != nil {
				draft.Release(ctx)
				return err
			}
		}
		if err := draft.Release(ctx); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("staged"), dst, "in", id, draft.Head())
		return nil
	},
}

func init() {
	cpCmd.Flags().BoolVarP(&cpFlags.within, "within", "w", false, "src is a logical path already in the draft, not a local file")
}
