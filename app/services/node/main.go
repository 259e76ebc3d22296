package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/protocol"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/pubsub"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Node struct {
			Name        string   `conf:"default:node1"`
			KeyFolder   string   `conf:"default:zblock/keys/"`
			KnownPeers  []string `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
			GenesisPath string   `conf:"help:optional json file overriding the genesis block"`
			Console     bool     `conf:"default:true"`
		}
		Sync struct {
			InitDelayMin        time.Duration `conf:"default:1s"`
			InitDelayMax        time.Duration `conf:"default:3s"`
			RequestTimeout      time.Duration `conf:"default:5s"`
			RequestRetries      int           `conf:"default:3"`
			PeerInterval        time.Duration `conf:"default:1m"`
			InconsistencyPolicy string        `conf:"default:halt,help:halt or continue when both chains are invalid"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for peer ids. The
	// names come from the file names in the key folder.
	ns, err := nameservice.New(cfg.Node.KeyFolder)
	if err != nil {
		return fmt.Errorf("unable to load name service: %w", err)
	}

	for id, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "id", id)
	}

	// =========================================================================
	// Blockchain Support

	// The identity of this node is the key pair in the key folder under the
	// node's name. It is created on the first run.
	path := filepath.Join(cfg.Node.KeyFolder, cfg.Node.Name+identity.KeyExtension)
	id, err := identity.Load(path)
	if err != nil {
		return fmt.Errorf("unable to load identity for node: %w", err)
	}

	log.Infow("startup", "status", "identity", "id", id.ID, "path", path)

	// A corrupted genesis means the node can't validate anything.
	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// A peer set is a collection of known nodes in the network so chains
	// and blocks can be shared.
	peerSet := peer.NewPeerSet()
	for _, host := range cfg.Node.KnownPeers {
		peerSet.Add(peer.New(host))
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package,
	// minus the nonce reports emitted while mining.
	evts := events.New(events.MiningProgress)
	ev := logger.NewEventHandler(log, evts.Send)

	// The bus is the transport carrying the chains and blocks topics
	// between the nodes.
	bus := pubsub.New(pubsub.Config{
		ID:        id.ID,
		Topics:    []string{protocol.ChainTopic, protocol.BlockTopic},
		URLFormat: "ws://%s/v1/node/pubsub",
		EvHandler: ev,
	})

	// The state value represents the blockchain node and manages the ledger
	// and provides an API for application support.
	st, err := state.New(state.Config{
		Identity:   id,
		Host:       cfg.Web.PrivateHost,
		Genesis:    gen,
		Publisher:  bus,
		KnownPeers: peerSet,
		EvHandler:  ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	defer bus.Shutdown()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// The worker package implements the control loop, mining and peer
	// updates. The worker will register itself with the state.
	worker.Run(worker.Config{
		State:          st,
		Bus:            bus,
		Output:         os.Stdout,
		Lookup:         ns.Lookup,
		InitDelayMin:   cfg.Sync.InitDelayMin,
		InitDelayMax:   cfg.Sync.InitDelayMax,
		RequestTimeout: cfg.Sync.RequestTimeout,
		RequestRetries: cfg.Sync.RequestRetries,
		PeerInterval:   cfg.Sync.PeerInterval,
		Policy:         cfg.Sync.InconsistencyPolicy,
		EvHandler:      ev,
		Fatal: func(err error) {
			log.Errorw("worker", "status", "fatal", "ERROR", err)
			select {
			case shutdown <- syscall.SIGTERM:
			default:
			}
		},
	})

	// =========================================================================
	// Console Support

	if cfg.Node.Console {
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				st.Worker.SignalInput(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				log.Errorw("console", "status", "stdin closed", "ERROR", err)
			}
		}()
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Bus:      bus,
	})

	// Construct a server to service the requests against the mux. The
	// transport connections live on this server so there is no write
	// timeout.
	private := http.Server{
		Addr:        cfg.Web.PrivateHost,
		Handler:     privateMux,
		ReadTimeout: cfg.Web.ReadTimeout,
		IdleTimeout: cfg.Web.IdleTimeout,
		ErrorLog:    zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop the control loop and mining before the transport goes away.
		st.Shutdown()

		// Close the connections to the other nodes.
		log.Infow("shutdown", "status", "shutdown transport")
		bus.Shutdown()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
