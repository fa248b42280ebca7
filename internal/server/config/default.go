package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr    = "127.0.0.1:5443"
	DefaultClusterAddr = "127.0.0.1:5343"
	DefaultGossipAddr  = "0.0.0.0"
	DefaultGossipPort  = 5344
	DefaultClusterName = "tlsmesh"

	DefaultFanoutTimeout     = 30 * time.Second
	DefaultFanoutConcurrency = 16
	DefaultWatchDebounce     = 500 * time.Millisecond
	DefaultHTTPClientAuth    = "request"

	DefaultAdminRateLimit = 5
	DefaultAdminRateBurst = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Cluster: ClusterConfig{
				Addr: DefaultClusterAddr,
			},
		},
		TLS: TLSSection{
			HTTPClientAuth: DefaultHTTPClientAuth,
			WatchDebounce:  DefaultWatchDebounce,
		},
		Cluster: ClusterSection{
			Name:              DefaultClusterName,
			GossipAddr:        DefaultGossipAddr,
			GossipPort:        DefaultGossipPort,
			FanoutTimeout:     DefaultFanoutTimeout,
			FanoutConcurrency: DefaultFanoutConcurrency,
		},
		Admin: AdminSection{
			RateLimit: DefaultAdminRateLimit,
			RateBurst: DefaultAdminRateBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
