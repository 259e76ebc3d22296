// Package peer maintains the peer related information such as the set
// of know peers and their status.
package peer

import (
	"sort"
	"sync"
)

// Peer represents information about a Node in the network. The ID is
// learned from the peer's status and is empty until then.
type Peer struct {
	ID   string `json:"id"`
	Host string `json:"host"`
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// String implements the Stringer interface.
func (p Peer) String() string {
	if p.ID == "" {
		return p.Host
	}
	return p.ID + "@" + p.Host
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	ID                string `json:"id"`
	Host              string `json:"host"`
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known
// peers, keyed by host.
type PeerSet struct {
	mu  sync.RWMutex
	set map[string]Peer
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]Peer),
	}
}

// Add adds a new node to the set. If the host is known and the peer carries
// an id, the id is recorded. It reports if the set changed.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	existing, exists := ps.set[peer.Host]
	switch {
	case !exists:
		ps.set[peer.Host] = peer
		return true

	case peer.ID != "" && peer.ID != existing.ID:
		ps.set[peer.Host] = peer
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer.Host)
}

// Copy returns a list of the known peers sorted by host, leaving out the
// specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Host < peers[j].Host })

	return peers
}

// Elect returns the peer with the lexicographically last id, leaving out
// the peer with the specified id. Peers whose id is not known yet can't be
// elected.
func (ps *PeerSet) Elect(selfID string) (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var elected Peer
	var found bool
	for _, peer := range ps.set {
		if peer.ID == "" || peer.ID == selfID {
			continue
		}
		if !found || peer.ID > elected.ID {
			elected = peer
			found = true
		}
	}

	return elected, found
}
