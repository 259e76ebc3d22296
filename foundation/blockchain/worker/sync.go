package worker

import (
	"math/rand"
	"time"
)

// chainRequest tracks the outstanding request for a peer's chain.
type chainRequest struct {
	active  bool
	attempt int
	peerID  string
	timer   *time.Timer
}

// newChainRequest constructs an inactive request with a stopped timer.
func newChainRequest() *chainRequest {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	return &chainRequest{
		timer: timer,
	}
}

// stop marks the request as complete.
func (r *chainRequest) stop() {
	r.active = false
	r.attempt = 0
	r.peerID = ""
	r.timer.Stop()
}

// =============================================================================

// initOperation waits a random delay so the transport can find peers,
// runs peer discovery and then tells the control loop to sync.
func (w *Worker) initOperation() {
	w.evHandler("worker: initOperation: G started")
	defer w.evHandler("worker: initOperation: G completed")

	delay := w.cfg.InitDelayMin
	if span := w.cfg.InitDelayMax - w.cfg.InitDelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	w.evHandler("worker: initOperation: waiting[%v]", delay)

	select {
	case <-time.After(delay):
	case <-w.shut:
		w.evHandler("worker: initOperation: received shut signal")
		return
	}

	w.runPeersOperation()

	select {
	case w.initDone <- struct{}{}:
	default:
	}
}

// requestChain elects a peer and asks it for its chain. Every call counts
// as an attempt and arms the request timeout.
func (w *Worker) requestChain(req *chainRequest) {
	pr, ok := w.state.ElectPeer()
	if !ok {
		w.evHandler("worker: requestChain: no peers to sync with")
		req.stop()
		return
	}

	req.active = true
	req.attempt++
	req.peerID = pr.ID

	w.evHandler("worker: requestChain: attempt[%d]: sending request to peer[%s]", req.attempt, pr)

	if err := w.state.NetSendChainRequest(pr.ID); err != nil {
		w.evHandler("worker: requestChain: ERROR: %s", err)
	}

	req.timer.Reset(w.cfg.RequestTimeout)
}

// requestTimedOut retries the chain request until the retries are used up.
func (w *Worker) requestTimedOut(req *chainRequest) {
	if !req.active {
		return
	}

	w.evHandler("worker: requestTimedOut: attempt[%d]: peer[%s]: no response", req.attempt, req.peerID)

	if req.attempt >= w.cfg.RequestRetries {
		w.evHandler("worker: requestTimedOut: giving up after %d attempts", req.attempt)
		req.stop()
		return
	}

	w.requestChain(req)
}
