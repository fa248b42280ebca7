// Package shutdown coordinates graceful shutdown of tlsmesh-server.
//
// Components register named hooks as they start. On SIGINT, SIGTERM or
// context cancellation the hooks run in reverse registration order under a
// shared deadline, so listeners stop before the membership they depend on.
package shutdown
