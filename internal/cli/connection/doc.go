// Package connection provides the HTTPS client tlsmesh-cli uses to reach a
// node's REST API.
//
// The client authenticates either with a client certificate (--cert/--key)
// or an admin API key sent as a Bearer credential, and verifies the server
// against --cacert when given.
package connection
