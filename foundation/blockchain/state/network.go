package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
)

const baseURL = "http://%s/v1/node"

// ErrNoPublisher is returned when a message needs to be sent and the node
// was constructed without a transport.
var ErrNoPublisher = errors.New("no publisher configured")

// =============================================================================

// NetSendChainRequest asks the peer with the specified id to publish its
// chain on the chain topic.
func (s *State) NetSendChainRequest(peerID string) error {
	s.evHandler("state: NetSendChainRequest: started: peer[%s]", peerID)
	defer s.evHandler("state: NetSendChainRequest: completed")

	req := protocol.LocalChainRequest{
		FromPeerID: peerID,
	}

	return s.publish(s.chainTopic, protocol.KindLocalChainRequest, req)
}

// NetSendChainResponse publishes the response on the chain topic.
func (s *State) NetSendChainResponse(resp protocol.ChainResponse) error {
	s.evHandler("state: NetSendChainResponse: started: receiver[%s]: blocks[%d]", resp.Receiver, len(resp.Blocks))
	defer s.evHandler("state: NetSendChainResponse: completed")

	return s.publish(s.chainTopic, protocol.KindChainResponse, resp)
}

// NetSendBlock publishes a newly mined block on the block topic.
func (s *State) NetSendBlock(block database.Block) error {
	s.evHandler("state: NetSendBlock: started: blk[%d]: hash[%s]", block.ID, block.Hash)
	defer s.evHandler("state: NetSendBlock: completed")

	return s.publish(s.blockTopic, protocol.KindBlock, block)
}

// NetRequestPeerStatus asks the node at the peer's host for its status
// which includes its id and the peers it knows about.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: id[%s]: latest-blknum[%d]: peer-list[%s]", pr, ps.ID, ps.LatestBlockNumber, ps.KnownPeers)

	return ps, nil
}

// =============================================================================

// publish encodes the value into a signed envelope and hands it to the
// transport.
func (s *State) publish(topic string, kind protocol.Kind, value any) error {
	if s.publisher == nil {
		return ErrNoPublisher
	}

	data, err := protocol.Encode(s.id, kind, value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	if err := s.publisher.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}

	return nil
}

// send is a helper function to send an HTTP request to a node.
func send(method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequest(method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		var err error
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return err
		}
	}

	client := http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
