package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "feedline",
		Short: "social feed fan-out service",
		Long: fmt.Sprintf(`feedline (v%s)

Posts, subscriptions and per-user timelines on Redis,
with synchronous fan-out and realtime push over SSE.`, version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of feedline",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feedline v%s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
