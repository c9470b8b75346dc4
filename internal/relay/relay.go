// Package relay wires together every other internal package into the
// running daemon: N pinned worker goroutines sharing a dispatcher, one
// control goroutine driving the backend cycle, and a process-wide drain
// flag flipped on SIGINT/SIGTERM, per spec.md §5.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/networknext/relay/internal/backend"
	"github.com/networknext/relay/internal/config"
	"github.com/networknext/relay/internal/dispatch"
	"github.com/networknext/relay/internal/relaymanager"
	"github.com/networknext/relay/internal/routerinfo"
	"github.com/networknext/relay/internal/session"
	"github.com/networknext/relay/internal/sock"
)

// packetHashKey is the 32-byte constant baked into every relay binary that
// keys the packet-family MAC (spec.md §4.2). It is shared by the whole
// relay mesh and is not secret in the sense a session key is: it proves a
// packet came from relay code, not that any particular session is
// authentic.
var packetHashKey = [32]byte{
	0x4e, 0x65, 0x74, 0x77, 0x6f, 0x72, 0x6b, 0x20,
	0x4e, 0x65, 0x78, 0x74, 0x20, 0x72, 0x65, 0x6c,
	0x61, 0x79, 0x20, 0x70, 0x61, 0x63, 0x6b, 0x65,
	0x74, 0x20, 0x68, 0x61, 0x73, 0x68, 0x20, 0x6b,
}

// Relay is the fully wired daemon: configuration, shared state and the set
// of sockets its workers own.
type Relay struct {
	cfg *config.Config
	log *slog.Logger

	dispatcher *dispatch.Dispatcher
	sessions   *session.Table
	relays     *relaymanager.Manager
	router     *routerinfo.Info
	sockets    []*sock.Socket

	controller *backend.Controller
	admin      *backend.AdminServer
}

// New constructs a Relay from cfg, opening cfg.ProcessorCount worker
// sockets bound to cfg.RelayAddress with SO_REUSEPORT.
func New(cfg *config.Config, log *slog.Logger) (*Relay, error) {
	sessions := session.NewTable()
	relays := relaymanager.New()
	router := routerinfo.New()

	dispatcher := dispatch.New(packetHashKey, cfg.Keychain, sessions, relays, router, log)

	sockets := make([]*sock.Socket, 0, cfg.ProcessorCount)
	for i := 0; i < cfg.ProcessorCount; i++ {
		opts := sock.DefaultOptions()
		opts.ReadBufferSize = cfg.RecvBufferSize
		opts.WriteBufferSize = cfg.SendBufferSize
		opts.AffinityCPU = i

		s, err := sock.Open(cfg.RelayAddress, opts)
		if err != nil {
			for _, opened := range sockets {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("relay: open worker socket %d: %w", i, err)
		}
		sockets = append(sockets, s)
	}

	client := backend.NewClient(cfg.BackendHostname)
	controller := &backend.Controller{
		RelayID:         relayIDFromAddress(cfg.RelayAddress),
		InstanceID:      cfg.InstanceID,
		RouterPublicKey: cfg.Keychain.RouterPublicKey[:],
		Client:          client,
		Recorder:        dispatcher.Recorder,
		Sessions:        sessions,
		Relays:          relays,
		Router:          router,
		Log:             log,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(backend.NewMetrics(dispatcher.Recorder, sessions))
	admin := backend.NewAdminServer(cfg.AdminAddress, registry)

	return &Relay{
		cfg:        cfg,
		log:        log,
		dispatcher: dispatcher,
		sessions:   sessions,
		relays:     relays,
		router:     router,
		sockets:    sockets,
		controller: controller,
		admin:      admin,
	}, nil
}

// Run starts every worker goroutine, the control loop and the admin server,
// blocking until ctx is cancelled (typically by a signal handler) and every
// goroutine has returned. Once ctx is cancelled the dispatcher's
// ShouldHandle flag is set to false, so handlers stop mutating state, and
// each worker returns at the top of its next loop iteration; workers run no
// extra drain iterations after cancellation.
func (r *Relay) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for i, s := range r.sockets {
		worker := newWorker(i, s, r.dispatcher, r.log)
		group.Go(func() error {
			worker.run(groupCtx)
			return nil
		})
	}

	group.Go(func() error {
		r.controller.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		return r.admin.ListenAndServe(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		r.dispatcher.ShouldHandle.Store(false)
		r.admin.SetHealthy(false)
		return nil
	})

	return group.Wait()
}

// Close releases every worker socket.
func (r *Relay) Close() error {
	var firstErr error
	for _, s := range r.sockets {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// relayIDFromAddress derives a stable numeric relay identity from its bind
// address; a real deployment would instead read this from the backend's
// relay-registration response, which is out of this spec's scope.
func relayIDFromAddress(addr *net.UDPAddr) uint64 {
	var id uint64
	ip := addr.IP.To16()
	for _, b := range ip {
		id = id<<8 | uint64(b)
	}
	return id ^ uint64(addr.Port)
}

