package main

import (
	"os"

	"nexus_go/config"
	"nexus_go/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:           "nexusctl",
	Short:         "PSITS-NEXUS maintenance CLI",
	Long:          "Repair requirement counters, seed a fresh database and archive activity logs.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(requirementsCmd, seedCmd, logsCmd)
}

// connect loads configuration and opens MySQL and Redis. Callers must
// database.Close when done.
func connect() *config.Config {
	config.LoadConfig()
	database.Connect()
	return config.AppConfig
}
