package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey <name>",
	Short: "Generate the key file for a node.",
	Args:  cobra.ExactArgs(1),
	RunE:  genkeyRun,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}

func genkeyRun(cmd *cobra.Command, args []string) error {
	id, path, err := genkey(keyFolder, args[0])
	if err != nil {
		return err
	}

	pterm.Success.Printfln("%s written for id %s", path, id.ID)

	return nil
}

// genkey creates the key file for the named node. An existing key file is
// never overwritten.
func genkey(folder string, name string) (identity.Identity, string, error) {
	path := filepath.Join(folder, name+identity.KeyExtension)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return identity.Identity{}, "", fmt.Errorf("key file %s already exists", path)
	case !errors.Is(err, fs.ErrNotExist):
		return identity.Identity{}, "", err
	}

	id, err := identity.Load(path)
	if err != nil {
		return identity.Identity{}, "", err
	}

	return id, path, nil
}
