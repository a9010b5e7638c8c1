package main

import (
	"nexus_go/database"
	"nexus_go/database/seeders"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate the schema and insert default accounts, requirements and events",
	RunE: func(cmd *cobra.Command, args []string) error {
		connect()
		defer database.Close()

		if err := database.AutoMigrate(database.DB); err != nil {
			return err
		}
		return seeders.SeedAll(database.DB)
	},
}
