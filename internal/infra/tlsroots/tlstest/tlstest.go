// Package tlstest issues throwaway certificates for tests.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var serial atomic.Int64

// CA is a self-signed test certificate authority.
type CA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
	PEM  []byte
}

// NewCA creates a CA with the given common name.
func NewCA(t testing.TB, cn string) *CA {
	t.Helper()

	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1)),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"TLSMesh Test"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err, "CreateCertificate(ca)")
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err, "ParseCertificate(ca)")

	return &CA{
		Cert: cert,
		Key:  key,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

// Pool returns a pool containing only this CA.
func (ca *CA) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	return pool
}

// Issue signs a leaf certificate usable for both server and client auth,
// valid for localhost and 127.0.0.1. subject.CommonName is typically a
// node ID or an admin name.
func (ca *CA) Issue(t testing.TB, subject pkix.Name) (certPEM, keyPEM []byte) {
	t.Helper()

	key := newKey(t)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial.Add(1)),
		Subject:      subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, &key.PublicKey, ca.Key)
	require.NoError(t, err, "CreateCertificate(leaf)")

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err, "MarshalECPrivateKey")

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

// KeyPair issues a leaf and returns it as a tls.Certificate.
func (ca *CA) KeyPair(t testing.TB, subject pkix.Name) tls.Certificate {
	t.Helper()

	certPEM, keyPEM := ca.Issue(t, subject)
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err, "X509KeyPair")
	return pair
}

// Files is a set of PEM files written by WriteFiles.
type Files struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// WriteFiles issues a leaf for subject and writes cert, key and CA bundle
// into dir using name as the file prefix.
func (ca *CA) WriteFiles(t testing.TB, dir, name string, subject pkix.Name) Files {
	t.Helper()

	certPEM, keyPEM := ca.Issue(t, subject)
	f := Files{
		CertFile: filepath.Join(dir, name+".crt"),
		KeyFile:  filepath.Join(dir, name+".key"),
		CAFile:   filepath.Join(dir, name+"-ca.pem"),
	}
	write(t, f.CertFile, certPEM, 0o644)
	write(t, f.KeyFile, keyPEM, 0o600)
	write(t, f.CAFile, ca.PEM, 0o644)
	return f
}

// Rotate replaces the cert and key in f with a freshly issued leaf.
func (ca *CA) Rotate(t testing.TB, f Files, subject pkix.Name) {
	t.Helper()

	certPEM, keyPEM := ca.Issue(t, subject)
	write(t, f.CertFile, certPEM, 0o644)
	write(t, f.KeyFile, keyPEM, 0o600)
}

func write(t testing.TB, path string, data []byte, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, mode), path)
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "GenerateKey")
	return key
}
