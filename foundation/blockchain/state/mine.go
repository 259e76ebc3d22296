package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// ErrNoData is returned when a block is requested to be created without data.
var ErrNoData = errors.New("block data is empty")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The ledger is not changed; the block
// is mined against a snapshot of the latest block.
func (s *State) MineNewBlock(ctx context.Context, data string) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: started: data[%s]", data)

	if data == "" {
		return database.Block{}, ErrNoData
	}

	args := database.POWArgs{
		PrevBlock:  s.db.LatestBlock(),
		Data:       data,
		Difficulty: s.db.Difficulty(),
		EvHandler:  s.evHandler,
	}

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, args)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	return block, nil
}

// CommitMinedBlock appends a block this node mined to the ledger. The block
// is validated against the tail of the chain at the time of the call so a
// block mined on a tail that has since changed is rejected.
func (s *State) CommitMinedBlock(block database.Block) error {
	s.evHandler("state: CommitMinedBlock: started: blk[%d]", block.ID)
	defer s.evHandler("state: CommitMinedBlock: completed")

	return s.db.TryAddBlock(block)
}
