package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
)

var showFlags = struct {
	version string
}{}

var showCmd = &coral.Command{
	Use:   "show <object-id>",
	Short: "list the files present in an object version",
	Long:  "show lists every logical path in object-id's version (head by default, or -v vN).",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("show takes exactly one argument, the object id")
		}
		id := args[0]
		v, err := parseVersionFlag(showFlags.version)
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
		files, err := vv.Files()
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s  %s\n", f.Digest[:12], f.Logical)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFlags.version, "version", "v", "", "version to show (default head), e.g. v3")
}

// parseVersionFlag parses a -v flag value, returning ocfl.Head for "".
func parseVersionFlag(s string) (ocfl.VNum, error) {
	if s == "" {
		return ocfl.Head, nil
	}
	return ocfl.ParseVNum(s)
}
