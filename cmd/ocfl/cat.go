package main

import (
	"io"
	"os"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
)

var catFlags = struct {
	version string
}{}

var catCmd = &coral.Command{
	Use:   "cat <object-id> <path>",
	Short: "print a file's contents to stdout",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 2 {
			return usageErrorf("cat takes exactly two arguments: object-id, path")
		}
		id, p := args[0], args[1]
		logical, err := ocfl.NewInventoryPath(p)
		if err != nil {
			return usageErrorf("%w", err)
		}
		v, err := parseVersionFlag(catFlags.version)
		if err != nil {
			return usageErrorf("%w", err)
		}
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		obj, err := r.OpenObject(ctx, id)
		if err != nil {
			return err
		}
		vv, err := obj.Version(v)
		if err != nil {
			return err
		}
		f, err := vv.GetFile(ctx, logical)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(os.Stdout, f)
		return err
	},
}

func init() {
	catCmd.Flags().StringVarP(&catFlags.version, "version", "v", "", "version to read from (default head), e.g. v3")
}
