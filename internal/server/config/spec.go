package config

import "time"

// ServerConfig is the root configuration for tlsmesh-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	TLS      TLSSection      `koanf:"tls"`
	Cluster  ClusterSection  `koanf:"cluster"`
	Security SecuritySection `koanf:"security"`
	Admin    AdminSection    `koanf:"admin"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Cluster ClusterConfig `koanf:"cluster"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// ClusterConfig configures the cluster RPC server.
type ClusterConfig struct {
	// Addr is the bind address (e.g., "0.0.0.0:5343").
	Addr string `koanf:"addr"`

	// AdvertiseAddr is the host:port peers dial. Empty means Addr.
	AdvertiseAddr string `koanf:"advertise_addr"`
}

// TLSSection configures the two certificate channels.
type TLSSection struct {
	// HTTP is the REST-facing channel. Without files the REST server runs
	// in plain HTTP and only API keys can authenticate.
	HTTP ChannelConfig `koanf:"http"`

	// Transport is the node-to-node channel. Required.
	Transport ChannelConfig `koanf:"transport"`

	// HTTPClientAuth controls client certificates on the REST server:
	// "none", "request" or "require".
	HTTPClientAuth string `koanf:"http_client_auth"`

	// Watch reloads a channel when its files change on disk. Watch
	// reloads never disconnect peers.
	Watch bool `koanf:"watch"`

	// WatchDebounce coalesces bursts of file events.
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// ChannelConfig locates the PEM files of one channel.
type ChannelConfig struct {
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// CAFile is a bundle file or a directory of PEM files.
	CAFile string `koanf:"ca_file"`
}

// Configured reports whether the channel has a key pair.
func (c ChannelConfig) Configured() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// ClusterSection configures cluster membership and reload rounds.
type ClusterSection struct {
	// Name is reported in every reload response.
	Name string `koanf:"name"`

	// NodeID is the unique identifier for this node. Transport
	// certificates must carry it as CN. If empty, one is generated at
	// startup.
	NodeID string `koanf:"node_id"`

	// GossipAddr is the gossip bind address (e.g., "192.168.1.10").
	GossipAddr string `koanf:"gossip_addr"`

	// GossipPort is the gossip bind port (e.g., 5344).
	GossipPort int `koanf:"gossip_port"`

	// AdvertiseAddr is the gossip address announced to peers.
	AdvertiseAddr string `koanf:"advertise_addr"`

	// Seeds is the list of gossip addresses to join.
	// Format: ["192.168.1.10:5344", "192.168.1.11:5344"]
	Seeds []string `koanf:"seeds"`

	// FanoutTimeout bounds each node call in a reload round.
	FanoutTimeout time.Duration `koanf:"fanout_timeout"`

	// FanoutConcurrency bounds in-flight node calls.
	FanoutConcurrency int `koanf:"fanout_concurrency"`
}

// SecuritySection configures administrators.
type SecuritySection struct {
	// AdminDNs are certificate subject DNs granted admin rights.
	AdminDNs []string `koanf:"admin_dns"`

	// AdminKeys are API keys granted admin rights.
	AdminKeys []AdminKeyConfig `koanf:"admin_keys"`
}

// AdminKeyConfig is one admin API key.
type AdminKeyConfig struct {
	ID string `koanf:"id"`

	// Hash is the argon2id hash of the secret (tlsmesh-cli hash-key).
	Hash string `koanf:"hash"`
}

// AdminSection configures the admin REST endpoints.
type AdminSection struct {
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// TrustedProxies are addresses or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the peer address is
	// always the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
