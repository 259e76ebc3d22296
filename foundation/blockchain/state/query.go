package state

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// ID returns the identifier of this node.
func (s *State) ID() string {
	return s.id.ID
}

// Host returns the host this node is reachable on by its peers.
func (s *State) Host() string {
	return s.host
}

// Difficulty returns the number of leading zero bits a block hash needs.
func (s *State) Difficulty() uint {
	return s.db.Difficulty()
}

// LatestBlock returns a copy the current latest block.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a copy of the full chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Copy()
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.LatestBlock().ID
		to = from
	}
	if to == QueryLatest {
		to = s.db.LatestBlock().ID
	}

	return s.db.QueryBlocksByNumber(from, to)
}

// =============================================================================

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list. It reports if the list changed.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) || peer.ID == s.id.ID {
		return false
	}
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// ElectPeer returns the known peer with the lexicographically last id.
func (s *State) ElectPeer() (peer.Peer, bool) {
	return s.knownPeers.Elect(s.id.ID)
}

// Status returns the status this node reports to its peers.
func (s *State) Status() peer.PeerStatus {
	latest := s.db.LatestBlock()

	return peer.PeerStatus{
		ID:                s.id.ID,
		Host:              s.host,
		LatestBlockHash:   latest.Hash,
		LatestBlockNumber: latest.ID,
		KnownPeers:        s.RetrieveKnownPeers(),
	}
}
