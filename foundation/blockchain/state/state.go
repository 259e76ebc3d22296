// Package state is the core API for the blockchain and implements all the
// business rules and processing for keeping a node's ledger in sync.
package state

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the ledger.
type EventHandler func(v string, args ...any)

// Publisher represents the behavior required of the transport that carries
// messages to the other nodes.
type Publisher interface {
	Publish(topic string, data []byte) error
}

// Worker interface represents the behavior required to be implemented by any
// package providing support for the control loop and mining.
type Worker interface {
	Shutdown()
	SignalInput(line string) bool
	SignalCreateBlock(data string) bool
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node. It is constructed once at startup.
type Config struct {
	Identity   identity.Identity
	Host       string
	Genesis    genesis.Genesis
	ChainTopic string
	BlockTopic string
	Publisher  Publisher
	KnownPeers *peer.PeerSet
	EvHandler  EventHandler
}

// State manages the ledger for the node.
type State struct {
	id         identity.Identity
	host       string
	chainTopic string
	blockTopic string
	evHandler  EventHandler

	publisher  Publisher
	knownPeers *peer.PeerSet
	db         *database.Database

	Worker Worker
}

// New constructs a new state holding a ledger with the genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Construct the ledger with only the genesis block.
	db, err := database.New(cfg.Genesis, ev)
	if err != nil {
		return nil, err
	}

	chainTopic := cfg.ChainTopic
	if chainTopic == "" {
		chainTopic = protocol.ChainTopic
	}

	blockTopic := cfg.BlockTopic
	if blockTopic == "" {
		blockTopic = protocol.BlockTopic
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		id:         cfg.Identity,
		host:       cfg.Host,
		chainTopic: chainTopic,
		blockTopic: blockTopic,
		evHandler:  ev,

		publisher:  cfg.Publisher,
		knownPeers: knownPeers,
		db:         db,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all ledger writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}
