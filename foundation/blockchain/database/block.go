package database

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

// Set of errors returned when a block fails validation against its
// predecessor. The checks run in the order these are declared.
var (
	ErrWrongPreviousHash = errors.New("wrong previous hash")
	ErrMalformedHash     = errors.New("malformed hash")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrNotNextBlock      = errors.New("not the next block")
	ErrInvalidHash       = errors.New("invalid hash")
)

// progressAttempts is how often the miner reports the nonce it is on.
const progressAttempts = 100_000

// =============================================================================

// Block represents one immutable, hash-linked unit of ledger data. The json
// keys are the wire format shared with the other nodes.
type Block struct {
	ID           uint64 `json:"id"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Data         string `json:"data"`
	Nonce        uint64 `json:"nonce"`
}

// NewGenesisBlock constructs the first block of every chain from the
// genesis settings. The genesis block is never mined or validated.
func NewGenesisBlock(gen genesis.Genesis) Block {
	return Block{
		ID:           0,
		Hash:         gen.Hash,
		PreviousHash: gen.PreviousHash,
		Timestamp:    gen.Timestamp,
		Data:         gen.Data,
		Nonce:        gen.Nonce,
	}
}

// String implements the Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("id[%d] hash[%s] prev[%s] nonce[%d] data[%q]", b.ID, b.Hash, b.PreviousHash, b.Nonce, b.Data)
}

// =============================================================================

// hashRecord is the canonical record hashed for a block. The field order
// here is part of the consensus rules.
type hashRecord struct {
	ID           uint64 `json:"id"`
	PreviousHash string `json:"previous_hash"`
	Data         string `json:"data"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        uint64 `json:"nonce"`
}

// Hash returns the SHA-256 digest of the block's logical fields.
func Hash(id uint64, timestamp int64, previousHash string, data string, nonce uint64) []byte {
	return signature.Digest(hashRecord{
		ID:           id,
		PreviousHash: previousHash,
		Data:         data,
		Timestamp:    timestamp,
		Nonce:        nonce,
	})
}

// BinaryString returns the binary digit representation of the hash with
// eight digits per byte.
func BinaryString(hash []byte) string {
	var b strings.Builder
	b.Grow(len(hash) * 8)
	for _, c := range hash {
		fmt.Fprintf(&b, "%08b", c)
	}
	return b.String()
}

// IsHashSolved checks the hash complies with the POW rules. The binary
// representation must start with difficulty 0's.
func IsHashSolved(difficulty uint, hash []byte) bool {
	if int(difficulty) > len(hash)*8 {
		return false
	}

	return strings.HasPrefix(BinaryString(hash), strings.Repeat("0", int(difficulty)))
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock  Block
	Data       string
	Difficulty uint
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The search can be cancelled.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := safeEvHandler(args.EvHandler)

	id := args.PrevBlock.ID + 1
	timestamp := time.Now().UTC().Unix()

	nonce, hash, err := mine(ctx, id, timestamp, args.PrevBlock.Hash, args.Data, args.Difficulty, ev)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		ID:           id,
		Hash:         hash,
		PreviousHash: args.PrevBlock.Hash,
		Timestamp:    timestamp,
		Data:         args.Data,
		Nonce:        nonce,
	}

	return nb, nil
}

// mine does the sequential search for a nonce that solves the puzzle. It
// checks the context between attempts so the worker can preempt it.
func mine(ctx context.Context, id uint64, timestamp int64, previousHash string, data string, difficulty uint, ev func(v string, args ...any)) (uint64, string, error) {
	ev("database: mine: MINING: started: blk[%d]", id)
	defer ev("database: mine: MINING: completed: blk[%d]", id)

	var nonce uint64
	for {
		if nonce%progressAttempts == 0 {
			ev("database: mine: MINING: nonce[%d]", nonce)

			if ctx.Err() != nil {
				ev("database: mine: MINING: CANCELLED")
				return 0, "", ctx.Err()
			}
		}

		hash := Hash(id, timestamp, previousHash, data, nonce)
		if IsHashSolved(difficulty, hash) {
			ev("database: mine: MINING: SOLVED: nonce[%d]: hash[%x]: binary[%s]", nonce, hash, BinaryString(hash))
			return nonce, hex.EncodeToString(hash), nil
		}

		nonce++
	}
}

// =============================================================================

// ValidateBlock takes a block and validates it against the block that
// precedes it. The first failing check is returned.
func (b Block) ValidateBlock(previousBlock Block, difficulty uint, evHandler func(v string, args ...any)) error {
	ev := safeEvHandler(evHandler)

	ev("database: ValidateBlock: validate: blk[%d]: check: previous hash does match previous block", b.ID)

	if b.PreviousHash != previousBlock.Hash {
		return fmt.Errorf("%w: blk[%d]: got %s, exp %s", ErrWrongPreviousHash, b.ID, b.PreviousHash, previousBlock.Hash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.ID)

	raw, err := hex.DecodeString(b.Hash)
	if err != nil {
		return fmt.Errorf("%w: blk[%d]: %s", ErrMalformedHash, b.ID, err)
	}

	if !IsHashSolved(difficulty, raw) {
		return fmt.Errorf("%w: blk[%d]: hash %s", ErrInvalidDifficulty, b.ID, b.Hash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block id is the next id", b.ID)

	if b.ID != previousBlock.ID+1 {
		return fmt.Errorf("%w: blk[%d]: latest is %d", ErrNotNextBlock, b.ID, previousBlock.ID)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash does match its contents", b.ID)

	hash := hex.EncodeToString(Hash(b.ID, b.Timestamp, b.PreviousHash, b.Data, b.Nonce))
	if hash != b.Hash {
		return fmt.Errorf("%w: blk[%d]: got %s, exp %s", ErrInvalidHash, b.ID, b.Hash, hash)
	}

	return nil
}

// IsBlockValid is the boolean form of ValidateBlock. The reason for a
// failure is reported through the event handler.
func IsBlockValid(block Block, previousBlock Block, difficulty uint, evHandler func(v string, args ...any)) bool {
	if err := block.ValidateBlock(previousBlock, difficulty, evHandler); err != nil {
		safeEvHandler(evHandler)("database: IsBlockValid: WARNING: %s", err)
		return false
	}

	return true
}

// =============================================================================

// safeEvHandler returns an event handler that can always be called.
func safeEvHandler(ev func(v string, args ...any)) func(v string, args ...any) {
	if ev == nil {
		return func(v string, args ...any) {}
	}
	return ev
}
