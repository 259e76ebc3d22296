// Package protocol defines the messages nodes exchange to keep their
// ledgers in sync and how a raw payload is classified into one of them.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

// Default names of the pub/sub topics.
const (
	ChainTopic = "chains"
	BlockTopic = "blocks"
)

// Set of errors returned by Classify.
var (
	ErrUnrecognized = errors.New("unrecognized payload")
	ErrBadSignature = errors.New("envelope signature does not match source")
)

// =============================================================================

// Kind identifies the variant carried by a message.
type Kind string

// Set of message kinds.
const (
	KindChainResponse     Kind = "chain_response"
	KindLocalChainRequest Kind = "local_chain_request"
	KindBlock             Kind = "block"
)

// ChainResponse carries a full chain addressed to the node that asked
// for it.
type ChainResponse struct {
	Blocks   []database.Block `json:"blocks"`
	Receiver string           `json:"receiver"`
}

// LocalChainRequest asks the node whose id is FromPeerID to publish its
// chain. The requester is the source of the message.
type LocalChainRequest struct {
	FromPeerID string `json:"from_peer_id"`
}

// Message is a classified inbound payload. Only the field that matches
// Kind is set.
type Message struct {
	Kind          Kind
	Source        string
	ChainResponse ChainResponse
	ChainRequest  LocalChainRequest
	Block         database.Block
}

// =============================================================================

// Envelope is the tagged form every node publishes. The signature covers
// the kind, source and payload.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signedContent is the part of an envelope that is signed.
type signedContent struct {
	Kind    Kind            `json:"kind"`
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals the value into a signed envelope of the specified kind.
func Encode(id identity.Identity, kind Kind, value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	sig, err := id.Sign(signedContent{Kind: kind, Source: id.ID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}

	env := Envelope{
		Kind:      kind,
		Source:    id.ID,
		Payload:   payload,
		Signature: sig,
	}

	return json.Marshal(env)
}

// =============================================================================

// Required keys for each untagged shape, in the order they are tried.
var (
	chainResponseKeys = []string{"blocks", "receiver"}
	chainRequestKeys  = []string{"from_peer_id"}
	blockKeys         = []string{"id", "hash", "previous_hash", "timestamp", "data", "nonce"}
)

// Classify decodes a raw payload into a message. A payload with a kind is
// an envelope and is dispatched on the kind after its signature is
// checked. A payload without one is matched against the shapes in the
// order ChainResponse, LocalChainRequest, Block. The transport source is
// used as the message source for untagged payloads.
func Classify(data []byte, transportSource string) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %s", ErrUnrecognized, err)
	}

	if _, exists := fields["kind"]; exists {
		return classifyEnvelope(data)
	}

	if hasKeys(fields, chainResponseKeys) {
		msg := Message{Kind: KindChainResponse, Source: transportSource}
		if err := json.Unmarshal(data, &msg.ChainResponse); err == nil {
			return msg, nil
		}
	}

	if hasKeys(fields, chainRequestKeys) {
		msg := Message{Kind: KindLocalChainRequest, Source: transportSource}
		if err := json.Unmarshal(data, &msg.ChainRequest); err == nil {
			return msg, nil
		}
	}

	if hasKeys(fields, blockKeys) {
		msg := Message{Kind: KindBlock, Source: transportSource}
		if err := json.Unmarshal(data, &msg.Block); err == nil {
			return msg, nil
		}
	}

	return Message{}, ErrUnrecognized
}

// classifyEnvelope decodes a tagged envelope.
func classifyEnvelope(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %s", ErrUnrecognized, err)
	}

	from, err := signature.FromID(signedContent{Kind: env.Kind, Source: env.Source, Payload: env.Payload}, env.Signature)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	if from != env.Source {
		return Message{}, fmt.Errorf("%w: signed by %s, source %s", ErrBadSignature, from, env.Source)
	}

	msg := Message{Kind: env.Kind, Source: env.Source}

	switch env.Kind {
	case KindChainResponse:
		err = json.Unmarshal(env.Payload, &msg.ChainResponse)
	case KindLocalChainRequest:
		err = json.Unmarshal(env.Payload, &msg.ChainRequest)
	case KindBlock:
		err = json.Unmarshal(env.Payload, &msg.Block)
	default:
		return Message{}, fmt.Errorf("%w: kind %q", ErrUnrecognized, env.Kind)
	}

	if err != nil {
		return Message{}, fmt.Errorf("%w: %s", ErrUnrecognized, err)
	}

	return msg, nil
}

// hasKeys reports if all the keys exist in the fields.
func hasKeys(fields map[string]json.RawMessage, keys []string) bool {
	for _, key := range keys {
		if _, exists := fields[key]; !exists {
			return false
		}
	}
	return true
}
