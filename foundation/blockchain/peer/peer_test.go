package peer_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			if ps.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould not add the same peer twice.", tst.name)
			}

			ps.Remove(tst.peers[0])
			if len(ps.Copy("")) != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Elect(t *testing.T) {
	ps := peer.NewPeerSet()

	if _, found := ps.Elect("self"); found {
		t.Fatalf("Should not elect a peer from an empty set.")
	}

	ps.Add(peer.New("host1"))
	if _, found := ps.Elect("self"); found {
		t.Fatalf("Should not elect a peer without an id.")
	}

	if !ps.Add(peer.Peer{ID: "0xAA", Host: "host1"}) {
		t.Fatalf("Should record the id of a known host.")
	}
	ps.Add(peer.Peer{ID: "0xCC", Host: "host2"})
	ps.Add(peer.Peer{ID: "0xBB", Host: "host3"})
	ps.Add(peer.Peer{ID: "0xZZ", Host: "host4"})

	elected, found := ps.Elect("0xZZ")
	if !found || elected.ID != "0xCC" {
		t.Logf("got: %s", elected)
		t.Logf("exp: %s", "0xCC@host2")
		t.Fatalf("Should elect the lexicographically last peer that isn't self.")
	}
}
