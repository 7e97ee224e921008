package main

import (
	"fmt"

	"github.com/muesli/coral"
)

var purgeCmd = &coral.Command{
	Use:   "purge <object-id>",
	Short: "permanently remove an object from the storage root",
	Long:  "purge deletes object-id's entire object root, including all versions. This cannot be undone.",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("purge takes exactly one argument, the object id")
		}
		id := args[0]
		ctx := cmd.Context()
		r, err := openRepo(ctx)
		if err != nil {
			return err
		}
		if err := r.Purge(ctx, id); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("purged"), id)
		return nil
	},
}
