// Package database handles the ledger of blocks a node maintains in memory
// along with the rules for mining, validating and choosing chains.
package database

import (
	"errors"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// ErrEmptyLedger is returned when a block is added before the ledger has
// been initialized with the genesis block.
var ErrEmptyLedger = errors.New("ledger has no genesis block")

// ErrForeignGenesis is returned when a remote chain starts from a different
// genesis block than this ledger.
var ErrForeignGenesis = errors.New("remote chain has a different genesis block")

// =============================================================================

// Database manages the ordered sequence of blocks for a node. The sequence
// only grows by appending validated blocks or is replaced as a whole when a
// remote chain wins the fork choice.
type Database struct {
	mu         sync.RWMutex
	difficulty uint
	blocks     []Block
	evHandler  func(v string, args ...any)
}

// New constructs a ledger holding only the genesis block.
func New(gen genesis.Genesis, evHandler func(v string, args ...any)) (*Database, error) {
	if err := gen.Validate(); err != nil {
		return nil, err
	}

	db := Database{
		difficulty: gen.Difficulty,
		blocks:     []Block{NewGenesisBlock(gen)},
		evHandler:  safeEvHandler(evHandler),
	}

	return &db, nil
}

// Difficulty returns the number of leading zero bits a block hash needs.
func (db *Database) Difficulty() uint {
	return db.difficulty
}

// Genesis returns the first block of the chain.
func (db *Database) Genesis() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}
	}
	return db.blocks[0]
}

// LatestBlock returns the tail of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}
	}
	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks in the chain.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Copy returns a copy of the chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cpy := make([]Block, len(db.blocks))
	copy(cpy, db.blocks)
	return cpy
}

// QueryBlocksByNumber returns the blocks with ids between from and to
// inclusive.
func (db *Database) QueryBlocksByNumber(from uint64, to uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Block
	for _, block := range db.blocks {
		if block.ID >= from && block.ID <= to {
			out = append(out, block)
		}
	}

	return out
}

// =============================================================================

// TryAddBlock validates the block against the tail of the chain at the time
// of the call and appends it if it passes. A rejected block leaves the
// chain untouched.
func (db *Database) TryAddBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.blocks) == 0 {
		return ErrEmptyLedger
	}

	latest := db.blocks[len(db.blocks)-1]
	if err := block.ValidateBlock(latest, db.difficulty, db.evHandler); err != nil {
		db.evHandler("database: TryAddBlock: could not add block: %s", err)
		return err
	}

	db.blocks = append(db.blocks, block)
	db.evHandler("database: TryAddBlock: added: blk[%d]: hash[%s]", block.ID, block.Hash)

	return nil
}

// ChooseChain runs the fork choice between the current chain and the
// remote chain, replacing the current chain when the remote one wins. It
// reports if the chain was replaced. ErrChainsInvalid is returned when
// neither chain is valid and the chain is left as is.
func (db *Database) ChooseChain(remote []Block) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(remote) > 0 && len(db.blocks) > 0 && remote[0] != db.blocks[0] {
		return false, ErrForeignGenesis
	}

	_, remoteWins, err := chooseChain(db.blocks, remote, db.difficulty, db.evHandler)
	if err != nil {
		return false, err
	}

	if !remoteWins {
		return false, nil
	}

	blocks := make([]Block, len(remote))
	copy(blocks, remote)
	db.blocks = blocks

	db.evHandler("database: ChooseChain: replaced chain: len[%d]", len(blocks))

	return true, nil
}
