// Package worker implements the control loop, mining and peer updates that
// keep a node's ledger in sync with the network.
package worker

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/pubsub"
)

// Default values for the timing of the sync protocol.
const (
	defInitDelayMin   = time.Second
	defInitDelayMax   = 3 * time.Second
	defRequestTimeout = 5 * time.Second
	defRequestRetries = 3
	defPeerInterval   = time.Minute
)

// Set of policies for handling a fork choice where neither chain is valid.
const (
	PolicyHalt     = "halt"
	PolicyContinue = "continue"
)

// maxPendingData is the number of block payloads that can wait to be mined.
const maxPendingData = 100

// ErrInconsistentLedger is reported through Fatal when a fork choice finds
// neither chain valid and the policy is to halt.
var ErrInconsistentLedger = errors.New("local and remote chains are both invalid")

// =============================================================================

// Bus represents the behavior required of the transport by the worker.
type Bus interface {
	Messages() <-chan pubsub.Message
	Connect(host string) error
}

// Config represents the configuration required to run a worker.
type Config struct {
	State  *state.State
	Bus    Bus
	Output io.Writer

	// Lookup returns a display name for a peer id. Optional.
	Lookup func(id string) string

	// Fatal is called when the node can't continue. Optional.
	Fatal func(err error)

	InitDelayMin   time.Duration
	InitDelayMax   time.Duration
	RequestTimeout time.Duration
	RequestRetries int
	PeerInterval   time.Duration
	Policy         string

	EvHandler state.EventHandler
}

// Worker manages the control loop and the POW workflows for the node.
type Worker struct {
	cfg          Config
	state        *state.State
	bus          Bus
	output       io.Writer
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	shutOnce     sync.Once
	input        chan string
	createBlock  chan string
	responses    chan protocol.ChainResponse
	initDone     chan struct{}
	startMining  chan string
	cancelMining chan struct{}
	mined        chan mined
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(cfg Config) *Worker {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	cfg = withDefaults(cfg)

	output := cfg.Output
	if output == nil {
		output = io.Discard
	}

	w := Worker{
		cfg:          cfg,
		state:        cfg.State,
		bus:          cfg.Bus,
		output:       output,
		ticker:       time.NewTicker(cfg.PeerInterval),
		shut:         make(chan struct{}),
		input:        make(chan string, 10),
		createBlock:  make(chan string, 10),
		responses:    make(chan protocol.ChainResponse, 10),
		initDone:     make(chan struct{}, 1),
		startMining:  make(chan string, 1),
		cancelMining: make(chan struct{}, 1),
		mined:        make(chan mined, 1),
		evHandler:    ev,
	}

	// Register this worker with the state package.
	cfg.State.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.controlLoop,
		w.initOperation,
		w.peerOperations,
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// withDefaults fills in the zero values of the timing settings.
func withDefaults(cfg Config) Config {
	if cfg.InitDelayMin <= 0 && cfg.InitDelayMax <= 0 {
		cfg.InitDelayMin = defInitDelayMin
		cfg.InitDelayMax = defInitDelayMax
	}
	if cfg.InitDelayMax < cfg.InitDelayMin {
		cfg.InitDelayMax = cfg.InitDelayMin
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defRequestTimeout
	}
	if cfg.RequestRetries <= 0 {
		cfg.RequestRetries = defRequestRetries
	}
	if cfg.PeerInterval <= 0 {
		cfg.PeerInterval = defPeerInterval
	}
	if cfg.Policy != PolicyContinue {
		cfg.Policy = PolicyHalt
	}
	return cfg
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: signal cancel mining")
		w.SignalCancelMining()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalInput queues a line of console input for the control loop. It
// reports false if the queue is full or the worker is shutting down.
func (w *Worker) SignalInput(line string) bool {
	if w.isShutdown() {
		return false
	}

	select {
	case w.input <- line:
		return true
	default:
		w.evHandler("worker: SignalInput: queue full, input dropped")
		return false
	}
}

// SignalCreateBlock queues data to be mined into a new block. It reports
// false if the queue is full or the worker is shutting down.
func (w *Worker) SignalCreateBlock(data string) bool {
	if w.isShutdown() {
		return false
	}

	select {
	case w.createBlock <- data:
		w.evHandler("worker: SignalCreateBlock: create block signaled")
		return true
	default:
		w.evHandler("worker: SignalCreateBlock: queue full, block won't be created")
		return false
	}
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- struct{}{}:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// signalStartMining starts a mining operation for the data. Only the
// control loop calls this and only when no operation is running.
func (w *Worker) signalStartMining(data string) {
	select {
	case w.startMining <- data:
		w.evHandler("worker: signalStartMining: mining signaled")
	default:
	}
}

// fatal reports an unrecoverable error to the application.
func (w *Worker) fatal(err error) {
	w.evHandler("worker: FATAL: %s", err)
	if w.cfg.Fatal != nil {
		w.cfg.Fatal(err)
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
