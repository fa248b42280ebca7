// Package token generates random secrets.
//
// Secrets come from crypto/rand and are Base64 RawURL encoded so they can
// be pasted into headers and YAML unchanged. Admin API key secrets printed
// by "tlsmesh-cli hash-key --generate" are produced here.
package token
