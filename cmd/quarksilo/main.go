package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"

	"github.com/quark-run/quark/internal/baselib/actor"
	"github.com/quark-run/quark/internal/build"
	"github.com/quark-run/quark/internal/cluster"
	"github.com/quark-run/quark/internal/cluster/membership"
	"github.com/quark-run/quark/internal/cluster/placement"
	"github.com/quark-run/quark/internal/directory"
	"github.com/quark-run/quark/internal/host"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/proxy"
	"github.com/quark-run/quark/internal/reminder"
	"github.com/quark-run/quark/internal/saga"
	"github.com/quark-run/quark/internal/statestore"
	"github.com/quark-run/quark/internal/streams"
	"github.com/quark-run/quark/internal/supervisor"
	"github.com/quark-run/quark/internal/transport"
)

func main() {
	var (
		siloIDFlag     = flag.String("silo-id", "", "Unique silo identifier (default: hostname-pid)")
		dbPath         = flag.String("db", "", "Path to SQLite state database (default: ~/.quark/quark.db)")
		membershipPath = flag.String("membership-db", "~/.quark/membership.db", "Path to the bbolt membership store")
		listenAddr     = flag.String("listen", "localhost:7420", "Transport gRPC listen address")
		webAddr        = flag.String("web", ":8420", "WebSocket stream bridge address (empty to disable)")
		virtualNodes   = flag.Int("virtual-nodes", identity.DefaultVirtualNodes, "Virtual nodes per silo on the placement ring")
		idleTimeout    = flag.Duration("idle-timeout", host.DefaultIdleTimeout, "Idle deactivation timeout for activations")
		maxRestarts    = flag.Int("max-restarts", 3, "Activation restarts tolerated within restart-window before stopping instead")
		restartWindow  = flag.Duration("restart-window", time.Minute, "Trailing window over which max-restarts is counted")
		heartbeatTTL   = flag.Duration("heartbeat-ttl", 15*time.Second, "Membership heartbeat TTL")
		logDir         = flag.String("log-dir", "~/.quark/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
	)
	flag.Parse()

	expandHome := func(path string) string {
		expanded := os.ExpandEnv(path)
		if expanded == path && len(path) > 0 && path[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("Failed to get home directory: %v", err)
			}
			expanded = home + path[1:]
		}
		return expanded
	}

	dbPathExpanded := *dbPath
	if dbPathExpanded == "" {
		var err error
		dbPathExpanded, err = statestore.DefaultDBPath()
		if err != nil {
			log.Fatalf("Failed to resolve default db path: %v", err)
		}
	} else {
		dbPathExpanded = expandHome(dbPathExpanded)
	}
	membershipPathExpanded := expandHome(*membershipPath)
	logDirExpanded := expandHome(*logDir)

	siloIDStr := *siloIDFlag
	if siloIDStr == "" {
		hostname, _ := os.Hostname()
		siloIDStr = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			SiloID:         siloIDStr,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogFileSize,
			Filename:       "quarksilo.log",
		})
		if err != nil {
			log.Printf("Failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()

			multiWriter := io.MultiWriter(os.Stderr, logRotator)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags)
		}
	}

	log.Printf("quarksilo version %s commit=%s go=%s",
		build.Version(), commitInfo(), build.GoVersion,
	)

	siloID, err := identity.NewSiloID(siloIDStr)
	if err != nil {
		log.Fatalf("Invalid silo id: %v", err)
	}

	var btclogHandlers []btclog.Handler
	consoleHandler := btclog.NewDefaultHandler(os.Stderr)
	btclogHandlers = append(btclogHandlers, consoleHandler)

	if logRotator != nil {
		fileHandler := btclog.NewDefaultHandler(logRotator)
		btclogHandlers = append(btclogHandlers, fileHandler)

		log.Printf("Log file rotation enabled: dir=%s, max_files=%d, max_size=%dMB",
			logDirExpanded, *maxLogFiles, *maxLogFileSize,
		)
	}

	combinedHandler := build.NewHandlerSet(siloIDStr, btclogHandlers...)
	rootLogger := btclog.NewSLogger(combinedHandler)

	actor.UseLogger(rootLogger.WithPrefix(actor.Subsystem))
	host.UseLogger(rootLogger.WithPrefix(host.Subsystem))
	membership.UseLogger(rootLogger.WithPrefix(membership.Subsystem))
	cluster.UseLogger(rootLogger.WithPrefix(cluster.Subsystem))
	transport.UseLogger(rootLogger.WithPrefix(transport.Subsystem))
	proxy.UseLogger(rootLogger.WithPrefix(proxy.Subsystem))
	reminder.UseLogger(rootLogger.WithPrefix(reminder.Subsystem))
	streams.UseLogger(rootLogger.WithPrefix(streams.Subsystem))
	saga.UseLogger(rootLogger.WithPrefix(saga.Subsystem))

	slogLogger := slog.Default()

	sqliteStore, err := statestore.NewSqliteStore(&statestore.SqliteConfig{
		DatabaseFileName: dbPathExpanded,
	}, slogLogger)
	if err != nil {
		log.Fatalf("Failed to open state database: %v", err)
	}
	defer sqliteStore.Close()
	dbStore := sqliteStore.Store

	boltStore, err := membership.OpenBoltStore(membershipPathExpanded)
	if err != nil {
		log.Fatalf("Failed to open membership store: %v", err)
	}
	defer boltStore.Close()

	selfAddr := *listenAddr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := boltStore.PutSelf(ctx, membership.SiloInfo{
		SiloID:        siloID.String(),
		Address:       selfAddr,
		LastHeartbeat: time.Now(),
		TTL:           *heartbeatTTL,
	}); err != nil {
		log.Fatalf("Failed to register silo in membership store: %v", err)
	}

	go runHeartbeat(ctx, boltStore, siloID, selfAddr, *heartbeatTTL)

	watcher := membership.NewWatcher(boltStore, *heartbeatTTL)
	watcher.Start(ctx)
	defer watcher.Stop()

	addresses := membership.NewAddressBook()
	placer := placement.NewPlacer(identity.WithVirtualNodes(*virtualNodes))

	dirStore := directory.NewSQLiteStore(dbStore)
	resolver := directory.NewResolver(dirStore, placer, siloID)

	coordinator := cluster.NewCoordinator(watcher, placer, addresses, resolver)
	coordinator.Start(ctx)

	restartGuard := supervisor.NewRestartGuard(*restartWindow, *maxRestarts)
	restartPolicy := supervisor.SupervisorFunc(
		func(ctx context.Context, fc supervisor.FailureContext) supervisor.Directive {
			directive := restartGuard.Apply(fc.Child, supervisor.Restart, time.Now())
			log.Printf("activation %s failed (attempt %d): %v, directive=%s",
				fc.Child, fc.Attempt, fc.Err, directive)
			if directive == supervisor.Restart {
				return supervisor.Restart
			}
			return supervisor.Stop
		},
	)

	siloHost := host.New(siloID,
		host.WithIdleTimeout(*idleTimeout),
		host.WithSupervisor(restartPolicy),
	)
	frameHandler := host.NewFrameHandler(siloHost)

	transportServer := transport.NewServer(transport.ServerConfig{
		ListenAddr: selfAddr,
	}, frameHandler)
	if err := transportServer.Start(); err != nil {
		log.Fatalf("Failed to start transport server: %v", err)
	}
	defer transportServer.Stop()
	log.Printf("Transport server listening on %s", selfAddr)

	grpcTransport := transport.NewGrpcTransport()

	actorProxy := proxy.New(siloID, resolver, siloHost, addresses, grpcTransport, nil)

	actorStateStore := statestore.NewActorStateStore(dbStore)

	reminderQueries := reminder.New(dbStore.DB())
	reminderPoller := reminder.NewPoller(reminderQueries, siloHost, reminder.DefaultLeeway)
	reminderPoller.Start()
	defer reminderPoller.Stop()

	brokerActor := actor.NewActor[streams.BrokerRequest, streams.BrokerResponse](
		actor.ActorConfig[streams.BrokerRequest, streams.BrokerResponse]{
			ID:       "stream-broker",
			Behavior: streams.NewBroker(),
		},
	)
	brokerActor.Start()
	defer brokerActor.Stop()

	streamHandle := streams.NewHandle(brokerActor.Ref())
	streamRegistry := streams.NewRegistry()

	if *webAddr != "" {
		bridge := streams.NewWebSocketBridge(streamHandle, streams.DefaultStreamConfig())
		mux := http.NewServeMux()
		mux.Handle("/streams", bridge)

		webServer := &http.Server{Addr: *webAddr, Handler: mux}
		go func() {
			log.Printf("Stream WebSocket bridge listening on %s", *webAddr)
			if err := webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Stream WebSocket bridge error: %v", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			webServer.Shutdown(shutdownCtx)
		}()
	}

	sagaStore := saga.NewStore(actorStateStore)
	sagaCoordinator := saga.NewCoordinator(sagaStore)

	log.Printf(
		"quarksilo %s ready: proxy local_silo=%s, implicit registry holds %d consumers for the \"\" namespace, "+
			"saga coordinator ready (%T)",
		siloID, actorProxy.LocalSiloID, len(streamRegistry.ConsumersOf("")),
		sagaCoordinator,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received %v, initiating graceful shutdown (send again to force exit)...", sig)
		cancel()

		sig = <-sigCh
		log.Printf("Received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	log.Printf("quarksilo %s running (listen=%s)", siloID, selfAddr)

	<-ctx.Done()

	coordinator.Wait()

	log.Printf("quarksilo %s shut down", siloID)
}

// runHeartbeat refreshes this silo's own membership record at ttl/3 until
// ctx is cancelled, keeping it observed as active by every other silo's
// Watcher.
func runHeartbeat(ctx context.Context, store membership.Store,
	siloID identity.SiloID, addr string, ttl time.Duration) {

	ticker := time.NewTicker(ttl / membership.DefaultPollDivisor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := store.PutSelf(ctx, membership.SiloInfo{
				SiloID:        siloID.String(),
				Address:       addr,
				LastHeartbeat: time.Now(),
				TTL:           ttl,
			})
			if err != nil {
				log.Printf("Failed to refresh heartbeat: %v", err)
			}
		}
	}
}

// commitInfo returns the best available commit identifier. It prefers the
// Commit string set via ldflags (which includes tag info), falling back to
// the VCS commit hash from runtime/debug.
func commitInfo() string {
	if build.Commit != "" {
		return build.Commit
	}
	if build.CommitHash != "" {
		return build.CommitHash
	}

	return "dev"
}
