// Package cmd contains the admin commands.
package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	nodeURL   string
	keyFolder string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node's public API.")
	rootCmd.PersistentFlags().StringVarP(&keyFolder, "key-folder", "k", "zblock/keys/", "Path to the directory with node keys.")
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Administer a ledger node",
	SilenceUsage: true,
}

// Execute runs the command specified on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
