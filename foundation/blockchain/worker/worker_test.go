package worker_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/ardanlabs/ledger/foundation/pubsub"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// network connects a set of in memory buses.
type network struct {
	mu    sync.Mutex
	buses []*bus
}

// bus delivers everything published to every other bus on the network.
type bus struct {
	net  *network
	id   string
	ch   chan pubsub.Message
	sent []pubsub.Message
}

func (n *network) join(id string) *bus {
	n.mu.Lock()
	defer n.mu.Unlock()

	b := bus{net: n, id: id, ch: make(chan pubsub.Message, 100)}
	n.buses = append(n.buses, &b)
	return &b
}

func (b *bus) Publish(topic string, data []byte) error {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()

	b.sent = append(b.sent, pubsub.Message{Topic: topic, From: b.id, Data: data})

	for _, other := range b.net.buses {
		if other == b {
			continue
		}
		other.ch <- pubsub.Message{Topic: topic, From: b.id, Data: data}
	}
	return nil
}

func (b *bus) Messages() <-chan pubsub.Message {
	return b.ch
}

func (b *bus) Connect(host string) error {
	return nil
}

// published counts the messages of the kind this bus has published.
func (b *bus) published(kind protocol.Kind) int {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()

	var n int
	for _, msg := range b.sent {
		m, err := protocol.Classify(msg.Data, msg.From)
		if err == nil && m.Kind == kind {
			n++
		}
	}
	return n
}

// output is a writer that is safe to read while the worker writes.
type output struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (o *output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(p)
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// node is a running state and worker.
type node struct {
	state  *state.State
	worker *worker.Worker
	bus    *bus
	output *output
}

// startNode constructs a node on the network with the default genesis and
// runs its worker.
func startNode(t *testing.T, net *network, host string, knownPeers ...peer.Peer) node {
	return startNodeWith(t, net, host, genesis.Default(), nil, knownPeers...)
}

// startNodeWith constructs a node on the network. The function, when not
// nil, can change the worker configuration before the worker runs.
func startNodeWith(t *testing.T, net *network, host string, gen genesis.Genesis, fn func(cfg *worker.Config), knownPeers ...peer.Peer) node {
	id, err := identity.New()
	if err != nil {
		t.Fatalf("Should be able to create an identity: %s", err)
	}

	b := net.join(id.ID)

	ps := peer.NewPeerSet()
	for _, pr := range knownPeers {
		ps.Add(pr)
	}

	st, err := state.New(state.Config{
		Identity:   id,
		Host:       host,
		Genesis:    gen,
		Publisher:  b,
		KnownPeers: ps,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}

	var out output
	cfg := worker.Config{
		State:          st,
		Bus:            b,
		Output:         &out,
		InitDelayMin:   10 * time.Millisecond,
		InitDelayMax:   20 * time.Millisecond,
		RequestTimeout: time.Second,
		RequestRetries: 2,
	}
	if fn != nil {
		fn(&cfg)
	}

	w := worker.Run(cfg)
	t.Cleanup(w.Shutdown)

	return node{state: st, worker: w, bus: b, output: &out}
}

// waitFor polls the condition until it holds or the time runs out.
func waitFor(d time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fn()
}

// =============================================================================

func Test_Console(t *testing.T) {
	var net network
	n := startNode(t, &net, "127.0.0.1:1")

	t.Log("Given the need to drive a node from the console.")
	{
		n.worker.SignalInput("create b hello")

		if !waitFor(10*time.Second, func() bool { return len(n.state.RetrieveChain()) == 2 }) {
			t.Fatalf("\t%s\tShould be able to mine a block from the console.", failed)
		}
		t.Logf("\t%s\tShould be able to mine a block from the console.", success)

		if got := n.state.LatestBlock().Data; got != "hello" {
			t.Logf("got: %s", got)
			t.Logf("exp: %s", "hello")
			t.Fatalf("\t%s\tShould store the data in the block.", failed)
		}
		t.Logf("\t%s\tShould store the data in the block.", success)

		n.worker.SignalInput("ls c")
		n.worker.SignalInput("ls p")
		n.worker.SignalInput("hello world")

		exp := []string{"Local Blockchain:", `"data": "hello"`, "Discovered Peers:", `unknown command "hello world"`}
		ok := waitFor(5*time.Second, func() bool {
			out := n.output.String()
			for _, s := range exp {
				if !strings.Contains(out, s) {
					return false
				}
			}
			return true
		})
		if !ok {
			t.Logf("got: %s", n.output.String())
			t.Logf("exp: %v", exp)
			t.Fatalf("\t%s\tShould print the results of the commands.", failed)
		}
		t.Logf("\t%s\tShould print the results of the commands.", success)
	}
}

func Test_BlockBroadcast(t *testing.T) {
	var net network
	a := startNode(t, &net, "127.0.0.1:1")
	b := startNode(t, &net, "127.0.0.1:2")

	t.Log("Given the need to share mined blocks between nodes.")
	{
		a.worker.SignalCreateBlock("one")
		a.worker.SignalCreateBlock("two")

		ok := waitFor(10*time.Second, func() bool {
			return len(a.state.RetrieveChain()) == 3 && b.state.LatestBlock() == a.state.LatestBlock()
		})
		if !ok {
			t.Logf("got: %d %d", len(a.state.RetrieveChain()), len(b.state.RetrieveChain()))
			t.Logf("exp: %d %d", 3, 3)
			t.Fatalf("\t%s\tShould append the broadcast blocks on the other node.", failed)
		}
		t.Logf("\t%s\tShould append the broadcast blocks on the other node.", success)
	}
}

func Test_InitialSync(t *testing.T) {
	var net network
	a := startNode(t, &net, "127.0.0.1:1")

	t.Log("Given the need for a new node to catch up with the network.")
	{
		a.worker.SignalCreateBlock("one")
		a.worker.SignalCreateBlock("two")

		if !waitFor(10*time.Second, func() bool { return len(a.state.RetrieveChain()) == 3 }) {
			t.Fatalf("\t%s\tShould be able to mine blocks on the first node.", failed)
		}

		known := peer.Peer{ID: a.state.ID(), Host: a.state.Host()}
		b := startNode(t, &net, "127.0.0.1:2", known)

		ok := waitFor(10*time.Second, func() bool {
			return b.state.LatestBlock() == a.state.LatestBlock()
		})
		if !ok {
			t.Logf("got: %d", len(b.state.RetrieveChain()))
			t.Logf("exp: %d", 3)
			t.Fatalf("\t%s\tShould replace its chain with the elected peer's chain.", failed)
		}
		t.Logf("\t%s\tShould replace its chain with the elected peer's chain.", success)
	}
}

func Test_RequestRetries(t *testing.T) {
	var net network

	// This peer has an id so it can be elected but nothing answers for it.
	silent := peer.Peer{ID: "0xffffffffffffffffffffffffffffffffffffffff", Host: "127.0.0.1:1"}

	const retries = 3
	n := startNodeWith(t, &net, "127.0.0.1:2", genesis.Default(), func(cfg *worker.Config) {
		cfg.RequestTimeout = 50 * time.Millisecond
		cfg.RequestRetries = retries
	}, silent)

	t.Log("Given the need to give up on a peer that never answers a chain request.")
	{
		ok := waitFor(10*time.Second, func() bool {
			return n.bus.published(protocol.KindLocalChainRequest) >= retries
		})
		if !ok {
			t.Logf("got: %d", n.bus.published(protocol.KindLocalChainRequest))
			t.Logf("exp: %d", retries)
			t.Fatalf("\t%s\tShould retry the request after each timeout.", failed)
		}
		t.Logf("\t%s\tShould retry the request after each timeout.", success)

		// Give the worker time for more attempts than it is allowed.
		time.Sleep(10 * 50 * time.Millisecond)

		if got := n.bus.published(protocol.KindLocalChainRequest); got != retries {
			t.Logf("got: %d", got)
			t.Logf("exp: %d", retries)
			t.Fatalf("\t%s\tShould stop after %d attempts.", failed, retries)
		}
		t.Logf("\t%s\tShould stop after %d attempts.", success, retries)

		if got := len(n.state.RetrieveChain()); got != 1 {
			t.Logf("got: %d", got)
			t.Logf("exp: %d", 1)
			t.Fatalf("\t%s\tShould keep the local chain.", failed)
		}
		t.Logf("\t%s\tShould keep the local chain.", success)
	}
}

func Test_CompetingBlock(t *testing.T) {
	var net network

	// Raise the difficulty so mining is still running when the peer's
	// block arrives.
	gen := genesis.Default()
	gen.Difficulty = 20

	t.Log("Given the need to stop mining when a peer extends the chain first.")
	{
		competing, err := database.POW(context.Background(), database.POWArgs{
			PrevBlock:  database.NewGenesisBlock(gen),
			Data:       "peer",
			Difficulty: gen.Difficulty,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the peer's block: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine the peer's block.", success)

		started := make(chan struct{})
		var once sync.Once
		ev := func(v string, args ...any) {
			if strings.HasPrefix(v, "worker: runMiningOperation: MINING: started") {
				once.Do(func() { close(started) })
			}
		}

		n := startNodeWith(t, &net, "127.0.0.1:1", gen, func(cfg *worker.Config) {
			cfg.EvHandler = ev
		})

		n.worker.SignalCreateBlock("mine")

		select {
		case <-started:
		case <-time.After(10 * time.Second):
			t.Fatalf("\t%s\tShould start mining the data.", failed)
		}
		t.Logf("\t%s\tShould start mining the data.", success)

		peerID, err := identity.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create the peer's identity: %s", failed, err)
		}

		data, err := protocol.Encode(peerID, protocol.KindBlock, competing)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the peer's block: %s", failed, err)
		}

		pb := net.join(peerID.ID)
		if err := pb.Publish(protocol.BlockTopic, data); err != nil {
			t.Fatalf("\t%s\tShould be able to publish the peer's block: %s", failed, err)
		}

		if !waitFor(60*time.Second, func() bool { return len(n.state.RetrieveChain()) == 3 }) {
			t.Logf("got: %d", len(n.state.RetrieveChain()))
			t.Logf("exp: %d", 3)
			t.Fatalf("\t%s\tShould mine the data again on the new tail.", failed)
		}
		t.Logf("\t%s\tShould mine the data again on the new tail.", success)

		chain := n.state.RetrieveChain()

		if chain[1] != competing {
			t.Logf("got: %s", chain[1])
			t.Logf("exp: %s", competing)
			t.Fatalf("\t%s\tShould keep the peer's block at id 1.", failed)
		}
		t.Logf("\t%s\tShould keep the peer's block at id 1.", success)

		if chain[2].ID != 2 || chain[2].Data != "mine" || chain[2].PreviousHash != competing.Hash {
			t.Logf("got: %s", chain[2])
			t.Logf("exp: id[2] prev[%s] data[%q]", competing.Hash, "mine")
			t.Fatalf("\t%s\tShould link the mined block to the peer's block.", failed)
		}
		t.Logf("\t%s\tShould link the mined block to the peer's block.", success)
	}
}
