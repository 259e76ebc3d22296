package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Print the peers the node knows about.",
	RunE:  peersRun,
}

func init() {
	rootCmd.AddCommand(peersCmd)
}

func peersRun(cmd *cobra.Command, args []string) error {
	peers, err := fetchPeers(nodeURL)
	if err != nil {
		return err
	}

	if len(peers) == 0 {
		pterm.Info.Println("no known peers")
		return nil
	}

	data := pterm.TableData{
		{"Host", "Name", "ID"},
	}
	for _, pr := range peers {
		data = append(data, []string{pr.Host, pr.Name, pr.ID})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
