package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Set of errors reported when the node's chain doesn't start from the
// expected genesis.
var (
	ErrEmptyChain         = errors.New("chain has no blocks")
	ErrGenesisMismatch    = errors.New("chain does not start with the expected genesis block")
	ErrDifficultyMismatch = errors.New("node reports a different difficulty than the genesis")
)

var genesisPath string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Fetch the node's chain and validate it locally.",
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&genesisPath, "genesis", "g", "", "Path to the genesis file, the built in genesis is used when empty.")
}

func verifyRun(cmd *cobra.Command, args []string) error {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Fetching the chain...")

	length, err := verifyChain(nodeURL, gen)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}

	spinner.Success("chain of ", length, " blocks is valid")

	return nil
}

// verifyChain fetches the chain, checks it starts from the genesis block
// and runs every block through validation at the genesis difficulty.
// Nothing the node reports about itself is trusted. It returns the length
// of the valid chain.
func verifyChain(url string, gen genesis.Genesis) (int, error) {
	ci, err := fetchChain(url)
	if err != nil {
		return 0, err
	}

	if len(ci.Blocks) == 0 {
		return 0, ErrEmptyChain
	}

	if exp := database.NewGenesisBlock(gen); ci.Blocks[0] != exp {
		return 0, fmt.Errorf("%w: got %s, exp %s", ErrGenesisMismatch, ci.Blocks[0], exp)
	}

	if ci.Difficulty != gen.Difficulty {
		return 0, fmt.Errorf("%w: got %d, exp %d", ErrDifficultyMismatch, ci.Difficulty, gen.Difficulty)
	}

	if err := database.ValidateChain(ci.Blocks, gen.Difficulty, nil); err != nil {
		return 0, err
	}

	return len(ci.Blocks), nil
}
