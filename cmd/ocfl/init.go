package main

import (
	"fmt"

	"github.com/muesli/coral"

	"github.com/ocflkit/ocfl/layout"
	"github.com/ocflkit/ocfl/repo"
)

var initFlags = struct {
	description string
	layoutName  string
}{}

var initCmd = &coral.Command{
	Use:   "init",
	Short: "initialize a new OCFL storage root",
	Long:  "init declares the configured storage root location as a new, empty OCFL 1.0 storage root.",
	RunE: func(cmd *coral.Command, args []string) error {
		ctx := cmd.Context()
		rc, err := repoConfig()
		if err != nil {
			return err
		}
		log := cliLogger()
		fsys, err := rc.Open(ctx, log)
		if err != nil {
			return err
		}
		layoutName := initFlags.layoutName
		if layoutName == "" {
			layoutName = layout.HashedNTuple
		}
		l, err := layout.Get(layoutName)
		if err != nil {
			return usageErrorf("%w", err)
		}
		if _, err := repo.Init(ctx, fsys, ".", l, initFlags.description, repo.WithLogger(log)); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("initialized"), "storage root with layout", l.Name())
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initFlags.description, "description", "", "storage root description")
	initCmd.Flags().StringVar(&initFlags.layoutName, "layout", "", fmt.Sprintf("storage layout extension (default %s); one of %v", layout.HashedNTuple, layout.Registered()))
}
