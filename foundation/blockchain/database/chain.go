package database

import (
	"errors"
	"fmt"
)

// ErrChainsInvalid is returned by ChooseChain when neither the local nor the
// remote chain is valid. The node's own copy of the ledger is corrupt and
// it is up to the caller to decide how to proceed.
var ErrChainsInvalid = errors.New("local and remote chains are both invalid")

// =============================================================================

// ValidateChain checks every block against the one before it, starting
// after the genesis block. An empty or genesis only chain is valid.
func ValidateChain(blocks []Block, difficulty uint, evHandler func(v string, args ...any)) error {
	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1], difficulty, evHandler); err != nil {
			return fmt.Errorf("index[%d]: %w", i, err)
		}
	}

	return nil
}

// IsChainValid is the boolean form of ValidateChain.
func IsChainValid(blocks []Block, difficulty uint, evHandler func(v string, args ...any)) bool {
	if err := ValidateChain(blocks, difficulty, evHandler); err != nil {
		safeEvHandler(evHandler)("database: IsChainValid: WARNING: %s", err)
		return false
	}

	return true
}

// ChooseChain is the fork-choice rule. The longest valid chain wins and the
// local chain wins a tie. There is no weighting by work, so a peer able to
// remine a longer chain quickly will win.
func ChooseChain(local []Block, remote []Block, difficulty uint, evHandler func(v string, args ...any)) ([]Block, error) {
	chain, _, err := chooseChain(local, remote, difficulty, evHandler)
	return chain, err
}

// chooseChain implements ChooseChain and also reports if the remote chain
// was the one selected.
func chooseChain(local []Block, remote []Block, difficulty uint, evHandler func(v string, args ...any)) ([]Block, bool, error) {
	ev := safeEvHandler(evHandler)

	isLocalValid := IsChainValid(local, difficulty, ev)
	isRemoteValid := IsChainValid(remote, difficulty, ev)

	ev("database: ChooseChain: local[len:%d valid:%t]: remote[len:%d valid:%t]", len(local), isLocalValid, len(remote), isRemoteValid)

	switch {
	case isLocalValid && isRemoteValid:
		if len(local) >= len(remote) {
			return local, false, nil
		}
		return remote, true, nil

	case isRemoteValid:
		return remote, true, nil

	case isLocalValid:
		return local, false, nil

	default:
		return nil, false, ErrChainsInvalid
	}
}
