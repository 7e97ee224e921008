package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/object"
)

var diffCmd = &coral.Command{
	Use:   "diff <object-id> [a] [b]",
	Short: "show file-level differences between two versions",
	Long: "diff compares version a against version b (e.g. v1 v2), both logical-path level. " +
		"With no versions given, compares the version before head against head. " +
		"Pass \"-\" for a to diff against an empty state (a full additive listing of b).",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) < 1 || len(args) > 3 {
			return usageErrorf("diff takes one to three arguments: object-id [a] [b]")
		}
		id := args[0]
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		obj, err := r.OpenObject(ctx, id)
		if err != nil {
			return err
		}
		a, b, err := diffVersions(obj.Inv.Head, args[1:])
		if err != nil {
			return usageErrorf("%w", err)
		}
		d, err := object.DiffVersions(obj, a, b)
		if err != nil {
			return err
		}
		if d.Empty() {
			fmt.Println(dimStyle.Render("no differences"))
			return nil
		}
		fmt.Print(d.String())
		return nil
	},
}

// diffVersions resolves the a/b version arguments to diff, given the
// object's head, defaulting to "the version before head" vs "head". An "a"
// argument of "-" requests a diff against an empty state (every path in b
// is Added), rather than a real version.
func diffVersions(head ocfl.VNum, args []string) (a, b ocfl.VNum, err error) {
	b = head
	a = head
	if prev, perr := head.Prev(); perr == nil {
		a = prev
	}
	switch len(args) {
	case 0:
		return a, b, nil
	case 1:
		a, err = parseVersionArg(args[0])
		return a, b, err
	default:
		a, err = parseVersionArg(args[0])
		if err != nil {
			return a, b, err
		}
		b, err = ocfl.ParseVNum(args[1])
		return a, b, err
	}
}

// parseVersionArg parses a diff "a"/left argument, treating "-" as the
// empty-state sentinel.
func parseVersionArg(s string) (ocfl.VNum, error) {
	if s == "-" {
		return ocfl.VNum{}, nil
	}
	return ocfl.ParseVNum(s)
}
