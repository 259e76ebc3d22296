package cmd

import (
	"net/http"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <data>",
	Short: "Ask the node to mine a block with the data.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  createRun,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func createRun(cmd *cobra.Command, args []string) error {
	nb := struct {
		Data string `json:"data"`
	}{
		Data: strings.Join(args, " "),
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := send(http.MethodPost, nodeURL+"/v1/block", nb, &resp); err != nil {
		return err
	}

	pterm.Success.Println(resp.Status)

	return nil
}
