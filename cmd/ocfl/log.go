package main

import (
	"fmt"

	"github.com/muesli/coral"
)

var logCmd = &coral.Command{
	Use:   "log <object-id>",
	Short: "show an object's version history",
	RunE: func(cmd *coral.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("log takes exactly one argument, the object id")
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
		for _, v := range obj.Inv.VNums() {
			ver, err := obj.Inv.GetVersion(v)
			if err != nil {
				return err
			}
			user := "-"
			if ver.User != nil {
				user = ver.User.Name
			}
			fmt.Printf("%s  %s  %s  %s\n",
				headStyle.Render(v.String()),
				ver.Created.Format("2006-01-02T15:04:05Z"),
				user,
				ver.Message,
			)
		}
		return nil
	},
}
