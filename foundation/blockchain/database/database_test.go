package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

func Test_MineAndTamper(t *testing.T) {
	db := newLedger(t)

	t.Log("Given the need to mine, append and tamper with a block.")
	{
		block, err := database.POW(context.Background(), database.POWArgs{
			PrevBlock:  db.LatestBlock(),
			Data:       "hello",
			Difficulty: db.Difficulty(),
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine block 1: %v", failed, err)
		}

		if err := db.TryAddBlock(block); err != nil {
			t.Fatalf("\t%s\tShould be able to append block 1: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to append block 1.", success)

		chain := db.Copy()
		if len(chain) != 2 || chain[1].ID != 1 || chain[1].Data != "hello" {
			t.Fatalf("\t%s\tShould have a 2 block chain: %v", failed, chain)
		}

		if !database.IsChainValid(chain, db.Difficulty(), nil) {
			t.Fatalf("\t%s\tShould have a valid chain.", failed)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)

		chain[1].Data = "goodbye"
		if database.IsChainValid(chain, db.Difficulty(), nil) {
			t.Fatalf("\t%s\tShould detect the corrupted data.", failed)
		}
		t.Logf("\t%s\tShould detect the corrupted data.", success)

		if db.LatestBlock().Data != "hello" {
			t.Fatalf("\t%s\tShould not change the ledger through a copy.", failed)
		}
	}
}

func Test_TryAddBlock(t *testing.T) {
	db := newLedger(t)
	chain := mineChain(t, 3)

	if err := db.TryAddBlock(chain[2]); !errors.Is(err, database.ErrWrongPreviousHash) {
		t.Logf("got: %v", err)
		t.Logf("exp: %v", database.ErrWrongPreviousHash)
		t.Fatalf("Should reject a block that doesn't follow the tail.")
	}

	if db.Length() != 1 {
		t.Fatalf("Should not change the ledger on rejection, got len %d.", db.Length())
	}

	for _, block := range chain[1:] {
		if err := db.TryAddBlock(block); err != nil {
			t.Fatalf("Should be able to append block %d: %v", block.ID, err)
		}
	}

	if db.Length() != 3 || db.LatestBlock() != chain[2] {
		t.Fatalf("Should have the mined chain.")
	}

	blocks := db.QueryBlocksByNumber(1, 2)
	if len(blocks) != 2 || blocks[0].ID != 1 {
		t.Fatalf("Should be able to query blocks by number: %v", blocks)
	}

	var empty database.Database
	if err := empty.TryAddBlock(chain[1]); !errors.Is(err, database.ErrEmptyLedger) {
		t.Fatalf("Should not add a block to an empty ledger: %v", err)
	}
}

func Test_LedgerChooseChain(t *testing.T) {
	db := newLedger(t)
	long := mineChain(t, 4)

	replaced, err := db.ChooseChain(long[:1])
	if err != nil || replaced {
		t.Fatalf("Should keep the local chain on a tie: %t %v", replaced, err)
	}

	replaced, err = db.ChooseChain(long)
	if err != nil || !replaced {
		t.Fatalf("Should adopt the longer remote chain: %t %v", replaced, err)
	}

	if db.Length() != 4 {
		t.Fatalf("Should have the remote chain, got len %d.", db.Length())
	}

	// Changing the caller's slice must not reach into the ledger.
	long[3].Data = "changed"
	if db.LatestBlock().Data == "changed" {
		t.Fatalf("Should hold its own copy of the remote chain.")
	}

	gen := genesis.Default()
	gen.Data = "other"
	foreign := []database.Block{database.NewGenesisBlock(gen), {}, {}, {}, {}}
	if _, err := db.ChooseChain(foreign); !errors.Is(err, database.ErrForeignGenesis) {
		t.Fatalf("Should reject a chain with a different genesis: %v", err)
	}
}
