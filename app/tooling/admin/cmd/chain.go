package cmd

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the node's chain.",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

func chainRun(cmd *cobra.Command, args []string) error {
	ci, err := fetchChain(nodeURL)
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"ID", "Hash", "Previous", "Time", "Nonce", "Data"},
	}
	for _, block := range ci.Blocks {
		data = append(data, []string{
			fmt.Sprint(block.ID),
			short(block.Hash),
			short(block.PreviousHash),
			time.Unix(block.Timestamp, 0).UTC().Format(time.RFC3339),
			fmt.Sprint(block.Nonce),
			block.Data,
		})
	}

	pterm.Info.Printfln("length %d, difficulty %d", ci.Length, ci.Difficulty)

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// short trims a hash for display.
func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16]
}
