package cmds

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "atlstore-tool",
	Short: "atlstore-tool inspects and queries partitioned ATL08 parquet stores",
}

// Execute try to find and execute the command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %q", err)
	}
}
