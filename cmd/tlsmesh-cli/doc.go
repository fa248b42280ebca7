// Package main provides the entry point for tlsmesh-cli.
//
// The CLI tool talks to a TLSMesh node's REST API:
//
//   - Reload certificates for the http or transport channel
//   - Show the certificates a node is serving
//   - Check node health and readiness
//   - Hash admin API key secrets for the server config
//
// Usage:
//
//	tlsmesh-cli [global flags] command [flags] [args]
//	tlsmesh-cli --cacert ca.pem --cert admin.crt --key admin.key reload --disconnect transport
//	tlsmesh-cli -k ops -K "$SECRET" -o json certs
package main
