package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auditorctl",
	Short: "Offline fiscal document auditing",
	Long: `auditorctl ingests fiscal document XML files into a local database,
verifies their access keys and prints a consistency verdict per document.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}
