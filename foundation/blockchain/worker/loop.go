package worker

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/pubsub"
)

// controlLoop is the only G that changes the ledger. It drains the
// transport, console input, block creation, chain responses, mining
// results and the request timer.
func (w *Worker) controlLoop() {
	w.evHandler("worker: controlLoop: G started")
	defer w.evHandler("worker: controlLoop: G completed")

	var messages <-chan pubsub.Message
	if w.bus != nil {
		messages = w.bus.Messages()
	}

	var (
		queue  []string
		mining bool
		req    = newChainRequest()
	)
	defer req.stop()

	startNext := func() {
		if mining || len(queue) == 0 || w.isShutdown() {
			return
		}
		mining = true
		w.signalStartMining(queue[0])
	}

	enqueue := func(data string) {
		if len(queue) >= maxPendingData {
			w.evHandler("worker: controlLoop: pending queue full, data dropped")
			fmt.Fprintln(w.output, "too many blocks waiting to be mined")
			return
		}
		queue = append(queue, data)
		startNext()
	}

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if w.handleMessage(msg, req) && mining {
				w.SignalCancelMining()
			}

		case line := <-w.input:
			if data, ok := w.handleInput(line); ok {
				enqueue(data)
			}

		case data := <-w.createBlock:
			enqueue(data)

		case resp := <-w.responses:
			if err := w.state.NetSendChainResponse(resp); err != nil {
				w.evHandler("worker: controlLoop: send chain response: ERROR: %s", err)
			}

		case <-w.initDone:
			w.requestChain(req)

		case <-req.timer.C:
			w.requestTimedOut(req)

		case result := <-w.mined:
			mining = false
			if w.handleMined(result) {
				queue = queue[1:]
			}
			startNext()

		case <-w.shut:
			w.evHandler("worker: controlLoop: received shut signal")
			return
		}
	}
}

// handleMessage applies an inbound message to the ledger. It reports if
// the ledger changed.
func (w *Worker) handleMessage(msg pubsub.Message, req *chainRequest) bool {
	res, err := w.state.ProcessMessage(msg.Data, msg.From)

	if res.Answered {
		w.evHandler("worker: handleMessage: chain request answered")
		req.stop()
	}

	if res.Response != nil {
		select {
		case w.responses <- *res.Response:
		default:
			if err := w.state.NetSendChainResponse(*res.Response); err != nil {
				w.evHandler("worker: handleMessage: send chain response: ERROR: %s", err)
			}
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrUnrecognized), errors.Is(err, protocol.ErrBadSignature):
		w.evHandler("worker: handleMessage: dropped: from[%s]: %s", msg.From, err)
	case state.IsChainsInvalid(err):
		w.inconsistent(err)
	default:
		w.evHandler("worker: handleMessage: rejected: from[%s]: %s", msg.From, err)
	}

	return res.Changed
}

// handleMined commits a mined block and publishes it. It reports if the
// data is done with and can leave the pending queue.
func (w *Worker) handleMined(result mined) bool {
	switch {
	case result.cancelled:
		w.evHandler("worker: handleMined: MINING: cancelled, data[%s] will be mined again", result.data)
		return false

	case result.err != nil:
		w.evHandler("worker: handleMined: MINING: ERROR: %s", result.err)
		fmt.Fprintf(w.output, "could not mine block: %s\n", result.err)
		return true
	}

	if err := w.state.CommitMinedBlock(result.block); err != nil {
		w.evHandler("worker: handleMined: MINING: tail changed, data[%s] will be mined again: %s", result.data, err)
		return false
	}

	fmt.Fprintf(w.output, "mined block %d, broadcasting\n", result.block.ID)

	if err := w.state.NetSendBlock(result.block); err != nil {
		w.evHandler("worker: handleMined: send block: ERROR: %s", err)
	}

	return true
}

// inconsistent applies the policy for a fork choice where neither chain
// is valid.
func (w *Worker) inconsistent(err error) {
	if w.cfg.Policy == PolicyContinue {
		w.evHandler("worker: inconsistent: WARNING: %s", err)
		return
	}

	w.fatal(fmt.Errorf("%w: %w", ErrInconsistentLedger, err))
}
