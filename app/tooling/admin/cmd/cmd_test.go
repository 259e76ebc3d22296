package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// mustDecode decodes a hex hash.
func mustDecode(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("Should be able to decode the hash: %s", err)
	}
	return b
}

// node serves the chain endpoint with the specified chain.
func node(t *testing.T, ci chainInfo) *httptest.Server {
	h := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chain" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(errorResponse{Error: "not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ci)
	}

	srv := httptest.NewServer(http.HandlerFunc(h))
	t.Cleanup(srv.Close)

	return srv
}

func Test_VerifyChain(t *testing.T) {
	gen := genesis.Default()
	blocks := []database.Block{database.NewGenesisBlock(gen)}

	block, err := database.POW(context.Background(), database.POWArgs{
		PrevBlock:  blocks[0],
		Data:       "hello",
		Difficulty: gen.Difficulty,
	})
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}
	blocks = append(blocks, block)

	t.Log("Given the need to verify a node's chain.")
	{
		srv := node(t, chainInfo{Difficulty: gen.Difficulty, Length: len(blocks), Blocks: blocks})

		length, err := verifyChain(srv.URL, gen)
		if err != nil {
			t.Fatalf("\t%s\tShould accept a valid chain: %s", failed, err)
		}
		if length != 2 {
			t.Logf("got: %d", length)
			t.Logf("exp: %d", 2)
			t.Fatalf("\t%s\tShould report the length of the chain.", failed)
		}
		t.Logf("\t%s\tShould accept a valid chain.", success)

		tampered := make([]database.Block, len(blocks))
		copy(tampered, blocks)
		tampered[1].Data = "tampered"

		srv = node(t, chainInfo{Difficulty: gen.Difficulty, Length: len(tampered), Blocks: tampered})
		if _, err := verifyChain(srv.URL, gen); err == nil {
			t.Fatalf("\t%s\tShould reject a tampered chain.", failed)
		}
		t.Logf("\t%s\tShould reject a tampered chain.", success)

		// A node can report an easier difficulty and start from its own
		// genesis so every block it mined passes at that difficulty.
		forgedGen := gen
		forgedGen.Data = "forged"
		forgedGen.Difficulty = 0

		forged := []database.Block{database.NewGenesisBlock(forgedGen)}
		easy, err := database.POW(context.Background(), database.POWArgs{
			PrevBlock:  forged[0],
			Data:       "hello",
			Difficulty: 0,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block at difficulty 0: %s", failed, err)
		}
		forged = append(forged, easy)

		srv = node(t, chainInfo{Difficulty: 0, Length: len(forged), Blocks: forged})
		if _, err := verifyChain(srv.URL, gen); !errors.Is(err, ErrGenesisMismatch) {
			t.Logf("got: %v", err)
			t.Logf("exp: %v", ErrGenesisMismatch)
			t.Fatalf("\t%s\tShould reject a chain with a forged genesis block.", failed)
		}
		t.Logf("\t%s\tShould reject a chain with a forged genesis block.", success)

		easy, err = database.POW(context.Background(), database.POWArgs{
			PrevBlock:  blocks[0],
			Data:       "hello",
			Difficulty: 0,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block at difficulty 0: %s", failed, err)
		}
		lowered := []database.Block{blocks[0], easy}

		srv = node(t, chainInfo{Difficulty: 0, Length: len(lowered), Blocks: lowered})
		if _, err := verifyChain(srv.URL, gen); !errors.Is(err, ErrDifficultyMismatch) {
			t.Logf("got: %v", err)
			t.Logf("exp: %v", ErrDifficultyMismatch)
			t.Fatalf("\t%s\tShould reject a node reporting a lower difficulty.", failed)
		}
		t.Logf("\t%s\tShould reject a node reporting a lower difficulty.", success)

		srv = node(t, chainInfo{Difficulty: gen.Difficulty, Length: len(lowered), Blocks: lowered})
		if _, err := verifyChain(srv.URL, gen); err == nil && !database.IsHashSolved(gen.Difficulty, mustDecode(t, easy.Hash)) {
			t.Fatalf("\t%s\tShould validate blocks at the genesis difficulty.", failed)
		}
		t.Logf("\t%s\tShould validate blocks at the genesis difficulty.", success)

		srv = node(t, chainInfo{})
		if _, err := verifyChain(srv.URL, gen); !errors.Is(err, ErrEmptyChain) {
			t.Logf("got: %v", err)
			t.Logf("exp: %v", ErrEmptyChain)
			t.Fatalf("\t%s\tShould reject an empty chain.", failed)
		}
		t.Logf("\t%s\tShould reject an empty chain.", success)

		if _, err := fetchPeers(srv.URL); err == nil || err.Error() != "not found" {
			t.Fatalf("\t%s\tShould surface the node's error message: %v", failed, err)
		}
		t.Logf("\t%s\tShould surface the node's error message.", success)
	}
}

func Test_Genkey(t *testing.T) {
	dir := t.TempDir()

	t.Log("Given the need to generate node key files.")
	{
		id, path, err := genkey(dir, "node1")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key file: %s", failed, err)
		}
		if id.ID == "" || path == "" {
			t.Fatalf("\t%s\tShould return the id and path of the key.", failed)
		}
		t.Logf("\t%s\tShould be able to generate a key file.", success)

		if _, _, err := genkey(dir, "node1"); err == nil {
			t.Fatalf("\t%s\tShould not overwrite an existing key file.", failed)
		}
		t.Logf("\t%s\tShould not overwrite an existing key file.", success)
	}
}
