// Package buildinfo exposes build information for TLSMesh binaries.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/yndnr/tlsmesh-go/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/tlsmesh-go/internal/infra/buildinfo.Commit=abc123"
//
// When they are not set, Get falls back to the module information recorded by
// the Go toolchain.
package buildinfo
