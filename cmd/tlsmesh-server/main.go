package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/core/service"
	"github.com/yndnr/tlsmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/tlsmesh-go/internal/infra/confloader"
	"github.com/yndnr/tlsmesh-go/internal/infra/shutdown"
	"github.com/yndnr/tlsmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/tlsmesh-go/internal/server/clusterserver"
	"github.com/yndnr/tlsmesh-go/internal/server/config"
	"github.com/yndnr/tlsmesh-go/internal/server/httpserver"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		checkConfig = flag.Bool("check", false, "Validate configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tlsmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkConfig {
		fmt.Println("configuration is valid")
		return nil
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	nodeID := config.ResolveNodeID(cfg, log)
	info := buildinfo.Get()
	log.Info("starting tlsmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"node_id", nodeID,
		"cluster", cfg.Cluster.Name,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)
	n, err := start(cfg, *configFile, log, shutdownHandler)
	if err != nil {
		// Unwind whatever started before the failure.
		if serr := shutdownHandler.Shutdown(); serr != nil {
			log.Error("cleanup after failed start", "error", serr)
		}
		return err
	}

	log.Info("node started",
		"http_url", n.http.URL(),
		"cluster_url", n.cluster.URL(),
		"gossip_addr", n.discovery.GossipAddr())

	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// node holds the running components of one TLSMesh node.
type node struct {
	store     *tlsroots.Store
	discovery *clusterserver.Discovery
	cluster   *clusterserver.Server
	http      *httpserver.Server
}

// start builds and starts every component, registering a shutdown hook for
// each one as soon as it runs. Hooks run in reverse order.
func start(cfg *config.ServerConfig, configFile string, log *slog.Logger, sh *shutdown.Handler) (*node, error) {
	n := &node{}
	metrics := metric.Global()

	// Certificate material.
	files := config.ChannelFiles(cfg)
	store, err := tlsroots.NewStore(files, tlsroots.WithStoreLogger(log))
	if err != nil {
		return nil, fmt.Errorf("load certificates: %w", err)
	}
	n.store = store

	if cfg.TLS.Watch {
		w := tlsroots.NewWatcher(store, files,
			tlsroots.WithLogger(log),
			tlsroots.WithDebounce(cfg.TLS.WatchDebounce),
			tlsroots.WithOnReload(func(ch domain.ChannelType, err error) {
				metrics.ObserveCertReload(ch.String(), err)
			}),
		)
		w.StartAsync()
		sh.OnShutdown("certificate watcher", func(context.Context) error {
			w.Stop()
			return nil
		})
	}

	// Authorization.
	admins := service.NewAdminRegistry(cfg.Security.AdminDNs, config.AdminKeys(cfg))
	gate := service.NewAuthorizationGate(admins)
	dns, keys := admins.AdminCount()
	if dns == 0 && keys == 0 {
		log.Warn("no administrators configured; every reload request will be denied")
	}

	// Membership.
	discCfg, err := config.ToDiscoveryConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	disc, err := clusterserver.NewDiscovery(discCfg)
	if err != nil {
		return nil, fmt.Errorf("start discovery: %w", err)
	}
	n.discovery = disc
	sh.OnShutdown("discovery", func(context.Context) error {
		if err := disc.Leave(); err != nil {
			log.Warn("leave cluster", "error", err)
		}
		return disc.Shutdown()
	})

	// Membership callbacks run under memberlist's node lock, so the member
	// count is read outside of them.
	updateMembers := func() { go metrics.SetClusterMembers(disc.NumMembers()) }
	disc.OnJoin(func(domain.Node) { updateMembers() })
	disc.OnLeave(func(string) { updateMembers() })
	updateMembers()

	// Outbound cluster links.
	pool := clusterserver.NewPeerPool(clusterserver.PeerPoolConfig{
		TLS:    store,
		Logger: log,
	})
	sh.OnShutdown("peer pool", func(context.Context) error {
		pool.Close()
		return nil
	})

	// Reload services.
	nodeHandler := service.NewNodeReloadHandler(service.NodeReloadHandlerConfig{
		Gate:         gate,
		Membership:   disc,
		Disconnector: pool,
		Metrics:      metrics,
		Logger:       log,
	})
	fanout := service.NewClusterFanout(service.ClusterFanoutConfig{
		ClusterName: cfg.Cluster.Name,
		Membership:  disc,
		Local:       nodeHandler,
		Remote:      clusterserver.NewInvoker(pool, log),
		Timeout:     cfg.Cluster.FanoutTimeout,
		Concurrency: cfg.Cluster.FanoutConcurrency,
		Metrics:     metrics,
		Logger:      log,
	})
	coordinator := service.NewReloadCoordinator(service.ReloadCoordinatorConfig{
		Gate:         gate,
		Store:        store,
		Membership:   disc,
		Fanout:       fanout,
		Disconnector: pool,
		Metrics:      metrics,
		Logger:       log,
	})

	// Cluster RPC server.
	n.cluster = clusterserver.New(clusterserver.Config{
		Addr:         cfg.Server.Cluster.Addr,
		TLSConfig:    store.ServerTLSConfig(domain.ChannelTransport, tls.RequireAndVerifyClientCert),
		Handler:      clusterserver.NewHandler(nodeHandler, log),
		Interceptors: clusterserver.DefaultInterceptors(disc, log),
		Logger:       log,
	})
	if err := n.cluster.Start(); err != nil {
		return nil, fmt.Errorf("start cluster server: %w", err)
	}
	sh.OnShutdown("cluster server", n.cluster.Shutdown)

	// REST API.
	proxies, err := config.TrustedProxies(cfg)
	if err != nil {
		return nil, err
	}
	httpCfg := httpserver.Config{
		Addr:   cfg.Server.HTTP.Addr,
		Logger: log,
		Handler: httpserver.NewRouter(httpserver.RouterConfig{
			ClusterName:    cfg.Cluster.Name,
			Coordinator:    coordinator,
			Certs:          store,
			Gate:           gate,
			Keys:           admins,
			Metrics:        metrics,
			Ready:          readiness(store),
			RateLimit:      cfg.Admin.RateLimit,
			RateBurst:      cfg.Admin.RateBurst,
			TrustedProxies: proxies,
			Logger:         log,
		}),
	}
	if cfg.TLS.HTTP.Configured() {
		httpCfg.TLSConfig = store.ServerTLSConfig(domain.ChannelHTTP, config.HTTPClientAuth(cfg))
	} else {
		log.Warn("http channel has no certificates; REST API is served without TLS",
			"addr", cfg.Server.HTTP.Addr)
	}
	n.http = httpserver.New(httpCfg)
	if err := n.http.Start(); err != nil {
		return nil, fmt.Errorf("start http server: %w", err)
	}
	sh.OnShutdown("http server", n.http.Shutdown)

	if err := watchConfig(cfg, configFile, log, sh); err != nil {
		log.Warn("config file watch disabled", "error", err)
	}

	return n, nil
}

// readiness reports not ready until transport material is loaded.
func readiness(store *tlsroots.Store) func() error {
	return func() error {
		if _, ok := store.Material(domain.ChannelTransport); !ok {
			return errors.New("transport certificates not loaded")
		}
		return nil
	}
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// watchConfig applies log level changes from the config file at runtime.
// Other settings need a restart.
func watchConfig(cfg *config.ServerConfig, path string, log *slog.Logger, sh *shutdown.Handler) error {
	if path == "" {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}

	w.OnChange(func(string) {
		next, err := loadConfig(path)
		if err != nil {
			log.Warn("ignoring config change", "path", path, "error", err)
			return
		}
		if !strings.EqualFold(next.Log.Level, logger.GetLevel()) {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
		if next.TLS != cfg.TLS || next.Cluster.Name != cfg.Cluster.Name {
			log.Warn("tls and cluster settings changed on disk; restart to apply")
		}
	})
	w.StartAsync()

	sh.OnShutdown("config watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
