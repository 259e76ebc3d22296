package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
)

// Result describes what processing an inbound message did.
type Result struct {
	Kind protocol.Kind

	// Response is set when the message was a chain request addressed to
	// this node and the response needs to be published.
	Response *protocol.ChainResponse

	// Answered is set when the message was a chain response addressed to
	// this node.
	Answered bool

	// Changed is set when the ledger was modified.
	Changed bool
}

// ProcessMessage classifies an inbound payload and applies it to the
// ledger. Messages addressed to another node are ignored. A chain response
// where neither chain is valid returns an error wrapping
// database.ErrChainsInvalid and leaves the ledger untouched.
func (s *State) ProcessMessage(data []byte, transportSource string) (Result, error) {
	msg, err := protocol.Classify(data, transportSource)
	if err != nil {
		s.evHandler("state: ProcessMessage: source[%s]: ERROR: %s", transportSource, err)
		return Result{}, err
	}

	switch msg.Kind {
	case protocol.KindChainResponse:
		return s.processChainResponse(msg)

	case protocol.KindLocalChainRequest:
		return s.processChainRequest(msg), nil

	case protocol.KindBlock:
		return s.processBlock(msg)
	}

	return Result{}, protocol.ErrUnrecognized
}

// processChainResponse runs the fork choice against the remote chain when
// the response is addressed to this node.
func (s *State) processChainResponse(msg protocol.Message) (Result, error) {
	res := Result{Kind: msg.Kind}

	resp := msg.ChainResponse
	if resp.Receiver != s.id.ID {
		s.evHandler("state: processChainResponse: ignored: receiver[%s]", resp.Receiver)
		return res, nil
	}

	res.Answered = true

	s.evHandler("state: processChainResponse: response from[%s]: blocks[%d]", msg.Source, len(resp.Blocks))
	for _, block := range resp.Blocks {
		s.evHandler("state: processChainResponse: %s", block)
	}

	replaced, err := s.db.ChooseChain(resp.Blocks)
	if err != nil {
		s.evHandler("state: processChainResponse: ERROR: %s", err)
		return res, fmt.Errorf("choose chain from %s: %w", msg.Source, err)
	}

	res.Changed = replaced

	return res, nil
}

// processChainRequest builds a response carrying the full chain when the
// request is addressed to this node. The response goes to the requester.
func (s *State) processChainRequest(msg protocol.Message) Result {
	res := Result{Kind: msg.Kind}

	if msg.ChainRequest.FromPeerID != s.id.ID {
		s.evHandler("state: processChainRequest: ignored: target[%s]", msg.ChainRequest.FromPeerID)
		return res
	}

	s.evHandler("state: processChainRequest: sending local chain to[%s]", msg.Source)

	res.Response = &protocol.ChainResponse{
		Blocks:   s.db.Copy(),
		Receiver: msg.Source,
	}

	return res
}

// processBlock attempts to append a block mined by another node.
func (s *State) processBlock(msg protocol.Message) (Result, error) {
	res := Result{Kind: msg.Kind}

	block := msg.Block
	s.evHandler("state: processBlock: received new block from[%s]: %s", msg.Source, block)

	if err := s.db.TryAddBlock(block); err != nil {
		s.evHandler("state: processBlock: could not add block: %s", err)
		return res, fmt.Errorf("add block %d from %s: %w", block.ID, msg.Source, err)
	}

	res.Changed = true

	return res, nil
}

// IsChainsInvalid reports if the error signals that neither chain was
// valid during a fork choice.
func IsChainsInvalid(err error) bool {
	return errors.Is(err, database.ErrChainsInvalid)
}
