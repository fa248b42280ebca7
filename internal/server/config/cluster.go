package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/core/service"
	"github.com/yndnr/tlsmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/tlsmesh-go/internal/server/clusterserver"
)

// ResolveNodeID fills in Cluster.NodeID when it is empty and returns it.
//
// Generated IDs look like "tlsnode-01j9x3k8...". Transport certificates must
// carry the node ID as CN, so a generated ID is only useful with
// certificates issued after startup; a warning is logged.
func ResolveNodeID(cfg *ServerConfig, logger *slog.Logger) string {
	if cfg.Cluster.NodeID != "" {
		return cfg.Cluster.NodeID
	}
	cfg.Cluster.NodeID = generateNodeID()
	if logger != nil {
		logger.Warn("generated cluster node ID; transport certificate CN must match it",
			"node_id", cfg.Cluster.NodeID)
	}
	return cfg.Cluster.NodeID
}

func generateNodeID() string {
	return "tlsnode-" + strings.ToLower(ulid.Make().String())
}

// ChannelFiles returns the store configuration for every configured channel.
func ChannelFiles(cfg *ServerConfig) map[domain.ChannelType]tlsroots.ChannelFiles {
	files := make(map[domain.ChannelType]tlsroots.ChannelFiles, 2)
	add := func(ch domain.ChannelType, c ChannelConfig) {
		if c.Configured() {
			files[ch] = tlsroots.ChannelFiles{CertFile: c.CertFile, KeyFile: c.KeyFile, CAFile: c.CAFile}
		}
	}
	add(domain.ChannelHTTP, cfg.TLS.HTTP)
	add(domain.ChannelTransport, cfg.TLS.Transport)
	return files
}

// HTTPClientAuth maps tls.http_client_auth onto a tls.ClientAuthType.
// Presented certificates are always verified.
func HTTPClientAuth(cfg *ServerConfig) tls.ClientAuthType {
	switch cfg.TLS.HTTPClientAuth {
	case "none":
		return tls.NoClientCert
	case "require":
		return tls.RequireAndVerifyClientCert
	default:
		return tls.VerifyClientCertIfGiven
	}
}

// AdminKeys converts the configured admin API keys.
func AdminKeys(cfg *ServerConfig) []service.AdminKey {
	keys := make([]service.AdminKey, 0, len(cfg.Security.AdminKeys))
	for _, k := range cfg.Security.AdminKeys {
		keys = append(keys, service.AdminKey{ID: k.ID, SecretHash: k.Hash})
	}
	return keys
}

// TrustedProxies parses admin.trusted_proxies. A bare address is treated
// as a single-host prefix.
func TrustedProxies(cfg *ServerConfig) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cfg.Admin.TrustedProxies))
	for _, entry := range cfg.Admin.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("admin.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("admin.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// RPCAddr returns the base URL peers use to reach this node's cluster RPC.
func RPCAddr(cfg *ServerConfig) string {
	addr := cfg.Server.Cluster.AdvertiseAddr
	if addr == "" {
		addr = cfg.Server.Cluster.Addr
	}
	return "https://" + addr
}

// ToDiscoveryConfig converts ServerConfig to clusterserver.DiscoveryConfig.
// The node ID must have been resolved.
func ToDiscoveryConfig(cfg *ServerConfig, logger *slog.Logger) (clusterserver.DiscoveryConfig, error) {
	if cfg == nil {
		return clusterserver.DiscoveryConfig{}, fmt.Errorf("server config is nil")
	}
	if cfg.Cluster.NodeID == "" {
		return clusterserver.DiscoveryConfig{}, fmt.Errorf("cluster.node_id is not resolved")
	}

	return clusterserver.DiscoveryConfig{
		NodeID:        cfg.Cluster.NodeID,
		BindAddr:      cfg.Cluster.GossipAddr,
		BindPort:      cfg.Cluster.GossipPort,
		AdvertiseAddr: cfg.Cluster.AdvertiseAddr,
		RPCAddr:       RPCAddr(cfg),
		SeedNodes:     cfg.Cluster.Seeds,
		Logger:        logger,
	}, nil
}
