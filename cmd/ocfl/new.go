package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl/digest"
)

var newFlags = struct {
	alg string
}{}

var newCmd = &coral.Command{
	Use:   "new <object-id>",
	Short: "begin staging a brand-new object",
	Long: "new opens a staging draft for an object id that doesn't exist yet. " +
		"Use cp/mv/rm to populate it, then commit to create the object's first version.",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("new takes exactly one argument, the object id")
		}
		id := args[0]
		alg := newFlags.alg
		if alg == "" {
			alg = digest.SHA512
			if rc, err := repoConfig(); err == nil && rc.Algorithm != "" {
				alg = rc.Algorithm
			}
		}
		if !digest.ValidInventoryAlg(alg) {
			return usageErrorf("%q is not a valid inventory digest algorithm", alg)
		}
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		draft, err := r.NewObject(ctx, id, alg)
		if err != nil {
			return err
		}
		if err := draft.Release(ctx); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("staged"), id, "as", draft.Head())
		return nil
	},
}

func init() {
	newCmd.Flags().StringVar(&newFlags.alg, "alg", "", "digest algorithm for the new object (sha256 or sha512; default: the repo config's algorithm, else sha512)")
}
