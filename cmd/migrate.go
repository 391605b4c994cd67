package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soonlist/soonlist-backend/database"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(root.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			switch args[0] {
			case "up":
				return database.Migrate(db, root.cfg.DBName)
			case "down":
				if steps < 1 {
					return fmt.Errorf("--steps must be at least 1")
				}
				return database.Rollback(db, root.cfg.DBName, steps)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}
