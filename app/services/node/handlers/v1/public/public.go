// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	v1 "github.com/ardanlabs/ledger/business/web/v1"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client. The optional
// source query parameter is a comma separated list of the packages to
// stream events from.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var sources []string
	if s := r.URL.Query().Get("source"); s != "" {
		sources = strings.Split(s, ",")
	}

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID, sources...)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Chain returns the full local chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.RetrieveChain()

	ci := chainInfo{
		Difficulty: h.State.Difficulty(),
		Length:     len(blocks),
		Blocks:     make([]block, len(blocks)),
	}

	for i, blk := range blocks {
		ci.Blocks[i] = block{
			ID:           blk.ID,
			Hash:         blk.Hash,
			PreviousHash: blk.PreviousHash,
			Timestamp:    blk.Timestamp,
			Data:         blk.Data,
			Nonce:        blk.Nonce,
		}
	}

	return web.Respond(ctx, w, ci, http.StatusOK)
}

// Peers returns the peers this node knows about.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	known := h.State.RetrieveKnownPeers()

	peers := make([]peerInfo, len(known))
	for i, pr := range known {
		peers[i] = peerInfo{
			ID:   pr.ID,
			Name: h.NS.Lookup(pr.ID),
			Host: pr.Host,
		}
	}

	return web.Respond(ctx, w, peers, http.StatusOK)
}

// CreateBlock queues the data to be mined into a new block. The block is
// broadcast to the network once it is mined.
func (h Handlers) CreateBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb newBlock
	if err := web.Decode(r, &nb); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.Log.Infow("create block", "traceid", v.TraceID, "data", nb.Data)

	if h.State.Worker == nil || !h.State.Worker.SignalCreateBlock(nb.Data) {
		return v1.NewRequestError(errors.New("node is not accepting blocks"), http.StatusServiceUnavailable)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "block queued for mining",
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}
