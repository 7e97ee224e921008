package main

import (
	"fmt"
	"os"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl/validation"
)

var validateFlags = struct {
	objectID string
	fixity   bool
}{}

var validateCmd = &coral.Command{
	Use:   "validate",
	Short: "validate an object or the entire storage root",
	Long:  "validate checks OCFL 1.0 structural invariants without modifying anything. With --id, only that object is checked; otherwise every object in the storage root is.",
	RunE: func(cmd *coral.Command, args []string) error {
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		opts := []validation.Option{validation.WithFixityCheck(validateFlags.fixity)}
		if validateFlags.objectID != "" {
			res, err := r.Validate(ctx, validateFlags.objectID, opts...)
			if err != nil {
				return err
			}
			printValidation(validateFlags.objectID, res)
			if !res.Valid() {
				os.Exit(1)
			}
			return nil
		}
		infos, err := r.Objects(ctx, "")
		if err != nil {
			return err
		}
		allValid := true
		for _, info := range infos {
			res, err := r.Validate(ctx, info.ID, opts...)
			if err != nil {
				return err
			}
			printValidation(info.ID, res)
			if !res.Valid() {
				allValid = false
			}
		}
		if !allValid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.objectID, "id", "", "validate only this object id")
	validateCmd.Flags().BoolVar(&validateFlags.fixity, "fixity", false, "recompute and compare every content file's digest")
}

func printValidation(id string, res *validation.Result) {
	if res.Valid() {
		fmt.Println(okStyle.Render("valid"), id)
	} else {
		fmt.Println(errorStyle.Render("invalid"), id)
	}
	for _, f := range res.Fatal() {
		fmt.Printf("  %s %s: %s\n", errorStyle.Render(f.Code.ID), f.Code.Description, f.Err)
	}
	for _, f := range res.Warn() {
		fmt.Printf("  %s %s: %s\n", warnStyle.Render(f.Code.ID), f.Code.Description, f.Err)
	}
}
