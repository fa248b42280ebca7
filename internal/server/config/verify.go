package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error
	errs = append(errs, verifyServer(&cfg.Server)...)
	errs = append(errs, verifyTLS(&cfg.TLS)...)
	errs = append(errs, verifyCluster(&cfg.Cluster)...)
	errs = append(errs, verifySecurity(&cfg.Security)...)
	errs = append(errs, verifyLog(&cfg.Log)...)

	if cfg.Admin.RateLimit < 0 {
		errs = append(errs, errors.New("admin.rate_limit must not be negative"))
	}
	if cfg.Admin.RateLimit > 0 && cfg.Admin.RateBurst < 1 {
		errs = append(errs, errors.New("admin.rate_burst must be at least 1"))
	}
	if _, err := TrustedProxies(cfg); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func verifyServer(cfg *ServerSection) []error {
	var errs []error
	if err := verifyHostPort("server.http.addr", cfg.HTTP.Addr); err != nil {
		errs = append(errs, err)
	}
	if err := verifyHostPort("server.cluster.addr", cfg.Cluster.Addr); err != nil {
		errs = append(errs, err)
	}
	if cfg.Cluster.AdvertiseAddr != "" {
		if err := verifyHostPort("server.cluster.advertise_addr", cfg.Cluster.AdvertiseAddr); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.HTTP.Addr != "" && cfg.HTTP.Addr == cfg.Cluster.Addr {
		errs = append(errs, fmt.Errorf("server.http.addr and server.cluster.addr conflict: %s", cfg.HTTP.Addr))
	}
	return errs
}

func verifyTLS(cfg *TLSSection) []error {
	var errs []error

	if !cfg.Transport.Configured() {
		errs = append(errs, errors.New("tls.transport.cert_file and tls.transport.key_file are required"))
	}
	if cfg.Transport.Configured() && cfg.Transport.CAFile == "" {
		errs = append(errs, errors.New("tls.transport.ca_file is required"))
	}
	errs = append(errs, verifyChannelFiles("tls.transport", cfg.Transport)...)

	if (cfg.HTTP.CertFile == "") != (cfg.HTTP.KeyFile == "") {
		errs = append(errs, errors.New("tls.http.cert_file and tls.http.key_file must be set together"))
	}
	errs = append(errs, verifyChannelFiles("tls.http", cfg.HTTP)...)

	switch cfg.HTTPClientAuth {
	case "none", "request", "require":
	default:
		errs = append(errs, fmt.Errorf("tls.http_client_auth %q must be none, request or require", cfg.HTTPClientAuth))
	}
	if cfg.HTTPClientAuth == "require" && cfg.HTTP.CAFile == "" {
		errs = append(errs, errors.New("tls.http.ca_file is required when tls.http_client_auth is require"))
	}
	if cfg.Watch && cfg.WatchDebounce < 0 {
		errs = append(errs, errors.New("tls.watch_debounce must not be negative"))
	}
	return errs
}

func verifyChannelFiles(prefix string, ch ChannelConfig) []error {
	var errs []error
	for key, path := range map[string]string{
		"cert_file": ch.CertFile,
		"key_file":  ch.KeyFile,
		"ca_file":   ch.CAFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", prefix, key, err))
		}
	}
	return errs
}

func verifyCluster(cfg *ClusterSection) []error {
	var errs []error
	if cfg.Name == "" {
		errs = append(errs, errors.New("cluster.name is required"))
	}
	if cfg.GossipPort < 0 || cfg.GossipPort > 65535 {
		errs = append(errs, fmt.Errorf("cluster.gossip_port %d out of range", cfg.GossipPort))
	}
	for _, seed := range cfg.Seeds {
		if err := verifyHostPort("cluster.seeds", seed); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.FanoutTimeout <= 0 {
		errs = append(errs, errors.New("cluster.fanout_timeout must be positive"))
	}
	if cfg.FanoutConcurrency < 1 {
		errs = append(errs, errors.New("cluster.fanout_concurrency must be at least 1"))
	}
	return errs
}

func verifySecurity(cfg *SecuritySection) []error {
	var errs []error
	seen := make(map[string]struct{}, len(cfg.AdminKeys))
	for i, k := range cfg.AdminKeys {
		if k.ID == "" || k.Hash == "" {
			errs = append(errs, fmt.Errorf("security.admin_keys[%d]: id and hash are required", i))
			continue
		}
		if _, dup := seen[k.ID]; dup {
			errs = append(errs, fmt.Errorf("security.admin_keys[%d]: duplicate id %q", i, k.ID))
		}
		seen[k.ID] = struct{}{}
	}
	return errs
}

func verifyLog(cfg *LogSection) []error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not valid", cfg.Level))
	}
	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", cfg.Format))
	}
	return errs
}

func verifyHostPort(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	return nil
}
