// Command fixgateway runs the FIX gateway Framer: it accepts inbound
// FIX connections, arbitrates session ownership between the engine and
// connected libraries, and drives the single-threaded event loop
// against a NATS JetStream publication bus. Wires flags, signal
// handling, and graceful shutdown around the Framer's DoWork loop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/luxfi/fixgateway/internal/adminrpc"
	"github.com/luxfi/fixgateway/internal/auth"
	"github.com/luxfi/fixgateway/internal/bus"
	"github.com/luxfi/fixgateway/internal/config"
	"github.com/luxfi/fixgateway/internal/endpoint"
	"github.com/luxfi/fixgateway/internal/framer"
	"github.com/luxfi/fixgateway/internal/metrics"
	"github.com/luxfi/fixgateway/internal/monitor"
	"github.com/luxfi/fixgateway/internal/sessionids"
	"github.com/luxfi/log"
)

func main() {
	logger := log.Root().New("module", "fixgateway")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("failed to load configuration", log.Err(err))
	}

	authStrategy := newAuthStrategy(cfg.CredentialFile, logger)

	natsBus, err := bus.New(cfg.NatsURL, cfg.NatsStream)
	if err != nil {
		logger.Fatal("failed to connect to publication bus", log.Err(err))
	}

	fixMetrics := metrics.New(cfg.MetricsNS)
	fixMetrics.ServeHTTP(cfg.MetricsAddr)

	endpointFactory := endpoint.NewFactory(natsBus, authStrategy, logger)

	clusterSource, isLeader := newCommandSource(cfg)

	var fx *framer.Framer
	adminServer := adminrpc.New(logger)

	fx, err = framer.NewFramer(
		cfg.Framer,
		framer.SystemClock{},
		newChannelSupplier(),
		endpointFactory,
		clusterSource,
		newSessionIdentityStore(),
		isLeader,
		loggingErrorHandler{logger: logger},
		logger,
		fixMetrics,
		nil,
	)
	if err != nil {
		logger.Fatal("failed to start framer", log.Err(err))
	}
	adminServer.SetServing(true)

	monitorServer := monitor.New(frameSnapshotSource{fx}, logger)
	go monitorServer.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", monitorServer.ServeHTTP)
	httpServer := &http.Server{Addr: cfg.MonitorAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitor http server stopped", "error", err)
		}
	}()

	go func() {
		if err := adminServer.Serve(cfg.AdminRPCAddr); err != nil {
			logger.Error("admin rpc server stopped", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("fixgateway started",
		"bind", cfg.Framer.BindHost, "port", cfg.Framer.BindPort,
		"node_id", cfg.Framer.NodeID, "cluster_enabled", cfg.Framer.ClusterEnabled)

	runLoop(ctx, fx, logger)

	logger.Info("shutting down")
	adminServer.SetServing(false)
	monitorServer.Stop()
	adminServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := fx.Close(); err != nil {
		logger.Error("error closing framer", "error", err)
	}
}

// runLoop drives DoWork cooperatively: spin while there's work, back
// off briefly when idle, matching the "no internal blocking" event
// loop described in spec.md §5 without pegging a CPU core when quiet.
func runLoop(ctx context.Context, fx *framer.Framer, logger log.Logger) {
	idle := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		work := fx.DoWork()
		if work == 0 {
			idle += time.Millisecond
			if idle > 10*time.Millisecond {
				idle = 10 * time.Millisecond
			}
			time.Sleep(idle)
			continue
		}
		idle = 0
	}
}

// newAuthStrategy builds the Logon credential check from an optional
// "username:bcrypt-hash" file; an empty path means no deployment
// credential store has been provisioned, so every logon is accepted.
func newAuthStrategy(path string, logger log.Logger) endpoint.AuthStrategy {
	creds := loadCredentials(path, logger)
	if len(creds) == 0 {
		return auth.AllowAll{}
	}
	return auth.NewCredentialStore(creds)
}

// newCommandSource builds the command subscription and leadership
// predicate for the configured topology. Leadership itself comes from
// the cluster consensus algorithm, out of scope here (spec.md §1); the
// lowest node id is used as a placeholder leadership hint query so the
// accept path (spec.md §4.6, re-queried every attempt, never cached)
// has a real collaborator to call in a single-process deployment.
func newCommandSource(cfg config.Config) (framer.CommandSource, func() bool) {
	if !cfg.Framer.ClusterEnabled {
		return framer.NewSoloCommandSource(), func() bool { return true }
	}
	source := framer.NewClusterCommandSource(cfg.Framer.NodeID, cfg.Framer.OtherNodeIDs)
	isLeader := func() bool {
		for _, other := range cfg.Framer.OtherNodeIDs {
			if other < cfg.Framer.NodeID {
				return false
			}
		}
		return true
	}
	return source, isLeader
}

func newChannelSupplier() framer.ChannelSupplier {
	return framer.NewTCPChannelSupplier()
}

func newSessionIdentityStore() framer.SessionIdentityStore {
	return sessionids.New()
}

func loadCredentials(path string, logger log.Logger) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read credential file, allowing all logons", "path", path, "error", err)
		return nil
	}
	creds := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		creds[parts[0]] = parts[1]
	}
	return creds
}

type loggingErrorHandler struct {
	logger log.Logger
}

func (h loggingErrorHandler) OnError(err error) {
	h.logger.Warn("framer error", "error", err)
}

// snapshotRequestTimeout bounds how long a monitor poll waits for the
// DoWork goroutine to answer a RequestSnapshot call; when a busy or
// stalled Framer does not answer in time (or the request queue is full),
// that poll broadcasts an empty snapshot (no libraries, zero counts)
// rather than blocking the monitor server indefinitely.
const snapshotRequestTimeout = 2 * time.Second

// frameSnapshotSource adapts framer.Framer to monitor.SnapshotSource
// without touching Framer state directly from this (monitor) goroutine:
// every field the Framer owns is read only inside DoWork, so this hands
// the read off via RequestSnapshot and waits for the reply instead.
type frameSnapshotSource struct {
	fx *framer.Framer
}

func (s frameSnapshotSource) Snapshot() monitor.Snapshot {
	reply := s.fx.RequestSnapshot()
	var snap framer.FramerSnapshot
	select {
	case got, ok := <-reply:
		if ok {
			snap = got
		}
	case <-time.After(snapshotRequestTimeout):
	}

	views := make([]monitor.LibraryView, 0, len(snap.Libraries))
	for _, lib := range snap.Libraries {
		views = append(views, monitor.LibraryView{
			LibraryID:        lib.LibraryID,
			OwnedSessions:    len(lib.Sessions()),
			OwnedConnections: len(lib.ConnectionIDs()),
			LastHeartbeatMs:  lib.LastHeartbeatMs,
		})
	}
	return monitor.Snapshot{
		TimestampMs:     time.Now().UnixMilli(),
		Leader:          snap.Leader,
		Libraries:       views,
		SessionCount:    snap.SessionCount,
		ConnectionCount: snap.ConnectionCount,
	}
}
