package main

import (
	"fmt"

	"nexus_go/database"
	"nexus_go/services"

	"github.com/spf13/cobra"
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "Requirement maintenance",
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate-counts",
	Short: "Recompute paid/unpaid counters of every requirement from its payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		connect()
		defer database.Close()

		ledger := services.NewRequirementLedger(database.NewGormStore(database.DB))
		reqs, err := ledger.RecalculateAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, r := range reqs {
			fmt.Fprintf(out, "%-6d %-40s paid=%d unpaid=%d\n", r.ID, r.Title, r.Paid, r.Unpaid)
		}
		fmt.Fprintf(out, "Recalculated %d requirement(s)\n", len(reqs))
		return nil
	},
}

func init() {
	requirementsCmd.AddCommand(recalculateCmd)
}
