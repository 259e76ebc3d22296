// Package genesis maintains access to the genesis block settings.
package genesis

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Default genesis values. Every node must start from the same genesis block
// so these never change for a running network.
const (
	defaultTimestamp  = 1640995200
	defaultPrevHash   = "genesis"
	defaultData       = "genesis!"
	defaultNonce      = 2836
	defaultHash       = "0000f816a87f806bb0073dcf026a64fb40c946b5abee2573702828694d5b4c43"
	defaultDifficulty = 2
)

// Genesis represents the genesis file.
type Genesis struct {
	Timestamp    int64  `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Data         string `json:"data"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"`
	Difficulty   uint   `json:"difficulty"` // Number of leading zero bits a block hash needs.
}

// =============================================================================

// Default returns the pre-mined genesis all nodes share unless a genesis
// file is configured.
func Default() Genesis {
	return Genesis{
		Timestamp:    defaultTimestamp,
		PreviousHash: defaultPrevHash,
		Data:         defaultData,
		Nonce:        defaultNonce,
		Hash:         defaultHash,
		Difficulty:   defaultDifficulty,
	}
}

// Load opens and consumes the genesis file. An empty path returns the
// default genesis.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis values are usable. A genesis that fails
// here is a corrupted constant and the node must not start with it.
func (g Genesis) Validate() error {
	raw, err := hex.DecodeString(g.Hash)
	if err != nil {
		return fmt.Errorf("genesis hash is not hex: %w", err)
	}

	if int(g.Difficulty) > len(raw)*8 {
		return fmt.Errorf("difficulty %d exceeds the %d bits of the hash", g.Difficulty, len(raw)*8)
	}

	if g.PreviousHash == "" {
		return fmt.Errorf("genesis previous hash is empty")
	}

	return nil
}
