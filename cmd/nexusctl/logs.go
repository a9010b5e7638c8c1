package main

import (
	"fmt"

	"nexus_go/database"
	"nexus_go/services"
	"nexus_go/storage"

	"github.com/spf13/cobra"
)

var flagDaysOld int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Activity log maintenance",
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Move buffered activity entries from Redis into MySQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		connect()
		defer database.Close()

		svc := services.NewActivityLogService(database.DB, database.RedisClient, nil, services.SystemClock{})
		n, err := svc.Flush(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d entries\n", n)
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Zip old activity entries into blob storage and delete them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := connect()
		defer database.Close()

		blobs, err := storage.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		svc := services.NewActivityLogService(database.DB, database.RedisClient, blobs, services.SystemClock{})
		key, err := svc.Archive(cmd.Context(), flagDaysOld)
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing old enough to archive")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived to %s\n", key)
		return nil
	},
}

func init() {
	archiveCmd.Flags().IntVar(&flagDaysOld, "days", services.DefaultArchiveAfterDays, "Archive entries older than this many days")
	logsCmd.AddCommand(flushCmd, archiveCmd)
}
