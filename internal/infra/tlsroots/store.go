package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// ErrChannelNotConfigured is returned for a channel without configured files.
var ErrChannelNotConfigured = errors.New("tlsroots: channel not configured")

// ChannelFiles locates the key and trust material of one channel.
type ChannelFiles struct {
	// CertFile is the PEM certificate chain, leaf first.
	CertFile string

	// KeyFile is the PEM private key matching CertFile.
	KeyFile string

	// CAFile is a PEM bundle or a directory of PEM files used to verify
	// peers. Empty means the system roots.
	CAFile string
}

// Material is one loaded generation of key and trust material.
// It is immutable once published.
type Material struct {
	Certificate *tls.Certificate
	Leaf        *x509.Certificate
	Roots       *x509.CertPool
	LoadedAt    time.Time
}

// CertInfo describes the active certificate of a channel.
type CertInfo struct {
	Channel   domain.ChannelType `json:"channel"`
	Subject   string             `json:"subject"`
	Issuer    string             `json:"issuer"`
	Serial    string             `json:"serial"`
	NotBefore time.Time          `json:"not_before"`
	NotAfter  time.Time          `json:"not_after"`
	LoadedAt  time.Time          `json:"loaded_at"`
	CertFile  string             `json:"cert_file"`
}

// Store holds the active material of every configured channel.
//
// Reload builds a complete new generation before publishing it; readers
// either see the old generation or the new one, never a mix. A failed
// reload leaves the previous generation in place.
type Store struct {
	files    map[domain.ChannelType]ChannelFiles
	material map[domain.ChannelType]*atomic.Pointer[Material]
	logger   *slog.Logger
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store and loads the initial material of every channel
// in files. Channels absent from files cannot be reloaded.
func NewStore(files map[domain.ChannelType]ChannelFiles, opts ...StoreOption) (*Store, error) {
	s := &Store{
		files:    make(map[domain.ChannelType]ChannelFiles, len(files)),
		material: make(map[domain.ChannelType]*atomic.Pointer[Material], len(files)),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for ch, f := range files {
		if !ch.IsValid() {
			return nil, fmt.Errorf("tlsroots: unknown channel %q", ch)
		}
		s.files[ch] = f
		s.material[ch] = new(atomic.Pointer[Material])
		if err := s.Reload(ch); err != nil {
			return nil, fmt.Errorf("tlsroots: initial load of %s material: %w", ch, err)
		}
	}

	return s, nil
}

// Reload loads the files of ch from disk and swaps them in.
//
// The key pair must parse and match, and the trust bundle must contain at
// least one certificate. Any other validation is left to the handshake.
func (s *Store) Reload(ch domain.ChannelType) error {
	files, ok := s.files[ch]
	if !ok {
		return domain.ErrCertificateLoad.WithCause(fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch))
	}

	m, err := s.load(files)
	if err != nil {
		return domain.ErrCertificateLoad.WithCause(err)
	}

	s.material[ch].Store(m)

	s.logger.Info("certificate material loaded",
		"channel", ch.String(),
		"subject", m.Leaf.Subject.String(),
		"not_after", m.Leaf.NotAfter,
		"cert_file", files.CertFile)

	return nil
}

func (s *Store) load(files ChannelFiles) (*Material, error) {
	cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	leaf := cert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse leaf certificate: %w", err)
		}
		cert.Leaf = leaf
	}

	var pool *Pool
	if files.CAFile == "" {
		pool, _ = NewPool()
	} else {
		pool = NewEmptyPool()
		if err := pool.AddCertPath(files.CAFile); err != nil {
			return nil, fmt.Errorf("load trust bundle: %w", err)
		}
	}

	return &Material{
		Certificate: &cert,
		Leaf:        leaf,
		Roots:       pool.Pool(),
		LoadedAt:    s.now(),
	}, nil
}

// Material returns the active material of ch.
func (s *Store) Material(ch domain.ChannelType) (*Material, bool) {
	p, ok := s.material[ch]
	if !ok {
		return nil, false
	}
	m := p.Load()
	return m, m != nil
}

// Channels returns the configured channels in a stable order.
func (s *Store) Channels() []domain.ChannelType {
	out := make([]domain.ChannelType, 0, len(s.files))
	for ch := range s.files {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CertInfo returns details of the active certificate of every channel.
func (s *Store) CertInfo() []CertInfo {
	infos := make([]CertInfo, 0, len(s.files))
	for _, ch := range s.Channels() {
		m, ok := s.Material(ch)
		if !ok {
			continue
		}
		infos = append(infos, CertInfo{
			Channel:   ch,
			Subject:   m.Leaf.Subject.String(),
			Issuer:    m.Leaf.Issuer.String(),
			Serial:    m.Leaf.SerialNumber.Text(16),
			NotBefore: m.Leaf.NotBefore,
			NotAfter:  m.Leaf.NotAfter,
			LoadedAt:  m.LoadedAt,
			CertFile:  s.files[ch].CertFile,
		})
	}
	return infos
}

// ServerTLSConfig returns a server config that serves the material of ch
// that is active at handshake time. clientAuth controls client certificate
// requests; verified client certificates are checked against the channel's
// current trust bundle.
func (s *Store) ServerTLSConfig(ch domain.ChannelType, clientAuth tls.ClientAuthType) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
			m, ok := s.Material(ch)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch)
			}
			return &tls.Config{
				MinVersion:   tls.VersionTLS12,
				Certificates: []tls.Certificate{*m.Certificate},
				ClientCAs:    m.Roots,
				ClientAuth:   clientAuth,
				NextProtos:   []string{"h2", "http/1.1"},
			}, nil
		},
	}
}

// ClientTLSConfig returns a client config built from the material of ch
// active right now. Connections dialed with it keep that material until
// they are closed.
func (s *Store) ClientTLSConfig(ch domain.ChannelType) (*tls.Config, error) {
	m, ok := s.Material(ch)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*m.Certificate},
		RootCAs:      m.Roots,
	}, nil
}
